package domain

import (
	"github.com/pkg/errors"
)

// Error taxonomy of the scheduler core. Callers wrap these with context and test
// for them with the Is* helpers, which look through the wrapping.
var (
	// Malformed or missing fields in a request. Rejected at the boundary.
	ErrBadParameter = errors.New("bad parameter")

	// A state already has a registration.
	ErrDuplicateRegistration = errors.New("duplicate state registration")

	// No handler and no fallback for a state.
	ErrResolutionMiss = errors.New("no handler for state")

	// The allocation algorithm could not satisfy a request.
	ErrAllocationFailure = errors.New("allocation failure")

	// Not enough free resources right now; the session stays queued.
	ErrInsufficientResources = errors.Wrap(ErrAllocationFailure, "insufficient resources")

	// The request can never be satisfied by this cluster.
	ErrUnsatisfiable = errors.Wrap(ErrAllocationFailure, "unsatisfiable request")

	// The persistent store or network failed.
	ErrTransport = errors.New("transport failure")

	ErrQueueFull = errors.New("queue full")

	ErrNotFound = errors.New("not found")
)

func IsBadParameter(err error) bool { return errors.Is(err, ErrBadParameter) }

func IsDuplicateRegistration(err error) bool { return errors.Is(err, ErrDuplicateRegistration) }

func IsResolutionMiss(err error) bool { return errors.Is(err, ErrResolutionMiss) }

// IsAllocationFailure is true for both transient and permanent allocation failures.
func IsAllocationFailure(err error) bool { return errors.Is(err, ErrAllocationFailure) }

func IsInsufficientResources(err error) bool { return errors.Is(err, ErrInsufficientResources) }

func IsUnsatisfiable(err error) bool { return errors.Is(err, ErrUnsatisfiable) }

func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

func IsQueueFull(err error) bool { return errors.Is(err, ErrQueueFull) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// BadParameterf builds a BadParameter error with a formatted reason.
func BadParameterf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBadParameter, format, args...)
}
