package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStatePopped   EventType = "state_popped"
	EventStateAdded    EventType = "state_added"
	EventStateMerged   EventType = "state_merged"
	EventStateCovered  EventType = "state_covered"
	EventTargetReached EventType = "target_reached"
	EventBlockEnter    EventType = "block_enter"
	EventBlockExit     EventType = "block_exit"
)

// CacheLookup classifies a block cache lookup.
type CacheLookup string

const (
	LookupMiss        CacheLookup = "miss"
	LookupHit         CacheLookup = "hit"
	LookupPartial     CacheLookup = "partial"
	LookupResumed     CacheLookup = "resumed"
	LookupApproximate CacheLookup = "approximate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// StateEvent describes something that happened to a single state.
type StateEvent struct {
	EventBase
	State    AbstractState `json:"-"`
	Label    string        `json:"state"`
	Covering AbstractState `json:"-"`
}

// BlockEvent describes a block entry or exit performed by the block cache.
type BlockEvent struct {
	EventBase
	Block      string      `json:"block"`
	Depth      int         `json:"depth"`
	Lookup     CacheLookup `json:"lookup,omitempty"`
	ExitStates int         `json:"exit_states,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStatePopped   func(context.Context, *StateEvent)
	OnStateAdded    func(context.Context, *StateEvent)
	OnStateMerged   func(context.Context, *StateEvent)
	OnStateCovered  func(context.Context, *StateEvent)
	OnTargetReached func(context.Context, *StateEvent)
	OnBlockEnter    func(context.Context, *BlockEvent)
	OnBlockExit     func(context.Context, *BlockEvent)
}

// NewStateEvent stamps a state event.
func NewStateEvent(typ EventType, state AbstractState) *StateEvent {
	ev := &StateEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: typ},
		State:     state,
	}
	if state != nil {
		ev.Label = state.String()
	}
	return ev
}

// NewBlockEvent stamps a block event.
func NewBlockEvent(typ EventType, block string, depth int) *BlockEvent {
	return &BlockEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: typ},
		Block:     block,
		Depth:     depth,
	}
}
