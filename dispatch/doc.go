// Package dispatch runs one export call through its full cycle:
//
//	Idle → ArgumentsLowered → RawCallInvoked → ReturnLifted → CleanupInvoked → Idle
//
// A Dispatcher belongs to one instance. Its lock is held from the first
// lowering allocation until the cleanup export has returned, so calls on the
// same instance never interleave. Calls on different instances do not
// contend.
//
// Failure handling per step:
//
//	lowering fails      no raw call, no cleanup
//	raw call traps      trap error, no cleanup
//	lifting fails       cleanup still runs once with the raw results
//	cleanup traps       trap error in phase cleanup; a lifting error wins
//
// The cleanup export runs under a context detached from caller
// cancellation. A caller that gives up while the raw call is running still
// owns an instance whose guest may hold an unreleased result buffer.
package dispatch
