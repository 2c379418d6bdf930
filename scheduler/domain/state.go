package domain

import (
	"fmt"
)

// SessionState is a lifecycle state of a session. The numeric values are stable:
// handler registration and fallback resolution compare them.
type SessionState uint32

const (
	StateUndef      SessionState = 0
	StateInit       SessionState = 1
	StateQueued     SessionState = 2
	StateAllocd     SessionState = 3
	StateActive     SessionState = 4
	StateTerminated SessionState = 5
	// Terminal like TERMINATED, reached by cancellation.
	StateCanceled SessionState = 6

	// Run a scheduling pass over all queues.
	StateSchedule SessionState = 9

	// Fallback markers. Never the state of a session.
	StateAny   SessionState = 10
	StateError SessionState = 20

	// Error-class states are numerically above StateError and resolve to the ERROR
	// fallback when they have no handler of their own.
	StateAllocFailed       SessionState = 21
	StateWalltimeExceeded  SessionState = 22
	StateQueueTimeExceeded SessionState = 23
	StateRejected          SessionState = 24
	StateNodeFailed        SessionState = 25
)

var stateNames = map[SessionState]string{
	StateUndef:             "UNDEF",
	StateInit:              "INIT",
	StateQueued:            "QUEUED",
	StateAllocd:            "ALLOCD",
	StateActive:            "ACTIVE",
	StateTerminated:        "TERMINATED",
	StateCanceled:          "CANCELED",
	StateSchedule:          "SCHEDULE",
	StateAny:               "ANY",
	StateError:             "ERROR",
	StateAllocFailed:       "ALLOC_FAILED",
	StateWalltimeExceeded:  "WALLTIME_EXCEEDED",
	StateQueueTimeExceeded: "QUEUE_TIME_EXCEEDED",
	StateRejected:          "REJECTED",
	StateNodeFailed:        "NODE_FAILED",
}

func (s SessionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", uint32(s))
}

func (s SessionState) IsTerminal() bool {
	return s == StateTerminated || s == StateCanceled
}

func (s SessionState) IsErrorClass() bool {
	return s > StateError
}

// ParseState accepts a state name as printed by String.
func ParseState(name string) (SessionState, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateUndef, BadParameterf("unknown state %q", name)
}
