/*
Package ports defines the driven ports (interfaces) of the fixpoint engine.

These interfaces decouple the exploration algorithm and the block cache from
concrete abstract domains and from storage backends.

# Key Interfaces

  - CPA: bundles an abstract domain with its transfer, merge, stop and
    precision adjustment operators.
  - Reducer: projects states onto a block and back, required for block
    abstraction memoization.
  - ReportStore: persists run reports (memory, file, Redis).
*/
package ports
