/*
Package domain contains the core vocabulary shared by the exploration engine,
the block-abstraction layer and the pluggable abstract domains.

It is kept pure and free of I/O: it only defines contracts and value types.

# Key Entities

  - AbstractState / Precision: opaque, immutable, domain-supplied values.
  - Adjustment: the result of a precision adjustment, carrying an Action.
  - Outcome: the typed result of an analysis run (Completed, Interrupted, Failed).
  - LifecycleHooks: callbacks for observing exploration and block caching.
  - Report: a persisted summary of a finished run.
*/
package domain
