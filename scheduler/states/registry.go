// Package states maps session lifecycle states to the handlers that run when a
// session is activated for them.
package states

import (
	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

// Activation is one scheduled handler invocation.
type Activation struct {
	Session  *domain.Session
	State    domain.SessionState
	Priority int
}

// Handler runs on the scheduling loop.
type Handler func(*Activation)

// Registration binds a state to a handler. A nil Handler marks a state that is
// known but intentionally unimplemented.
type Registration struct {
	State    domain.SessionState
	Handler  Handler
	Priority int
}

// Registry is an insertion-ordered list of registrations. It is not safe for
// concurrent use; it belongs to the scheduling loop.
type Registry struct {
	regs []*Registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a registration. Any state, including the ANY and ERROR markers,
// may be registered at most once; a second attempt leaves the first in place.
func (r *Registry) Register(state domain.SessionState, handler Handler, priority int) error {
	for _, reg := range r.regs {
		if reg.State == state {
			return errors.Wrapf(domain.ErrDuplicateRegistration, "state %s", state)
		}
	}
	r.regs = append(r.regs, &Registration{State: state, Handler: handler, Priority: priority})
	return nil
}

// Resolve finds the registration for state. The first exact match wins. Without
// one, an error-class state falls back to ERROR when registered and otherwise to
// ANY. Every other state, the markers included, falls back to ANY only.
func (r *Registry) Resolve(state domain.SessionState) (*Registration, error) {
	var any, errReg *Registration
	for _, reg := range r.regs {
		switch reg.State {
		case domain.StateAny:
			any = reg
			continue
		case domain.StateError:
			errReg = reg
			continue
		}
		if reg.State == state {
			return reg, nil
		}
	}
	if state.IsErrorClass() && errReg != nil {
		return errReg, nil
	}
	if any != nil {
		return any, nil
	}
	return nil, errors.Wrapf(domain.ErrResolutionMiss, "state %s", state)
}

// Registrations returns a copy of the registrations in insertion order.
func (r *Registry) Registrations() []Registration {
	out := make([]Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, *reg)
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.regs)
}
