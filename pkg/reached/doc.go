/*
Package reached implements the reached set of the exploration algorithm.

A Set stores every state discovered so far together with its precision, a
waitlist of states still to expand, one parent edge per non-root state, the
covering relation and the states marked as targets. States are indexed by
hash and by partition key so that merge and stop only compare states that may
interact.

Iteration order is deterministic: States, Candidates and Targets follow
insertion order, and the waitlist follows the configured Order.
*/
package reached
