package dispatch

import (
	"context"
)

// State is a step of the call cycle.
type State uint8

const (
	StateIdle State = iota
	StateArgumentsLowered
	StateRawCallInvoked
	StateReturnLifted
	StateCleanupInvoked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArgumentsLowered:
		return "arguments_lowered"
	case StateRawCallInvoked:
		return "raw_call_invoked"
	case StateReturnLifted:
		return "return_lifted"
	case StateCleanupInvoked:
		return "cleanup_invoked"
	default:
		return "unknown"
	}
}

// Transition is one observed state change. Err is the error carried out of
// the step, if any.
type Transition struct {
	Err    error
	Export string
	From   State
	To     State
}

// Observer is notified of every transition, in order, while the instance
// lock is held.
type Observer interface {
	Observe(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) Observe(ctx context.Context, t Transition) { f(ctx, t) }
