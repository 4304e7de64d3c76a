/*
Package bam implements block abstraction memoization.

A CPA wraps another analysis whose states can be reduced to a block. When the
exploration reaches a call into a block, the caller state is reduced to the
variables the block references and looked up in a cache keyed by (reduced
state, reduced precision, block):

  - on a miss, a fresh reached set is explored for the block and cached;
  - on a complete hit, the cached exit states are reused without exploration;
  - on a hit whose reached set still has waiting states, exploration resumes;
  - on a partial hit (the same key is being computed further up the call
    stack) the recursion policy decides: fail with a RecursionError, or
    iterate an assumed summary until it is stable.

Exit states are expanded back into the caller context and rebuilt at the
return location. The DataManager remembers how every returned state was
produced so that counterexamples can be traced through nested blocks, and it
can sweep cached reached sets that are no longer reachable.
*/
package bam
