/*
Package observability provides tools for monitoring the fixpoint engine.

Everything here is built on domain.LifecycleHooks: Prometheus metrics for states
and block cache lookups, structured logging of the same events, and Chain to
combine several hook sets into one.
*/
package observability
