package reached

import (
	"fmt"
	"math"

	"github.com/aretw0/fixpoint/pkg/domain"
)

// Order selects the waitlist policy.
type Order string

const (
	// OrderDFS pops the most recently queued state.
	OrderDFS Order = "dfs"
	// OrderBFS pops the oldest queued state.
	OrderBFS Order = "bfs"
	// OrderDistance pops the state closest to a target; ties go to the oldest.
	OrderDistance Order = "distance"
)

// DistanceFunc estimates how far a state is from a target.
type DistanceFunc func(domain.AbstractState) int

// ParseOrder validates a configured order name. The empty string means DFS.
func ParseOrder(name string) (Order, error) {
	switch Order(name) {
	case "", OrderDFS:
		return OrderDFS, nil
	case OrderBFS:
		return OrderBFS, nil
	case OrderDistance:
		return OrderDistance, nil
	default:
		return "", fmt.Errorf("unknown waitlist order %q (expected dfs, bfs or distance)", name)
	}
}

func unknownDistance(domain.AbstractState) int { return math.MaxInt }
