package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

type SessionID uint32

// Requestor identifies who submitted a session and where replies go.
type Requestor struct {
	UID      uint32
	Endpoint string // hostname or endpoint name of the originating process
}

func (r Requestor) Validate() error {
	if r.Endpoint == "" {
		return BadParameterf("missing requestor endpoint")
	}
	return nil
}

type BinDimension int

const (
	PowerDimension BinDimension = iota
	NodeDimension
)

func (d BinDimension) String() string {
	if d == PowerDimension {
		return "power"
	}
	return "nodes"
}

// BinRef locates one bin holding a session. It is for lookup only: the bin never
// owns the session.
type BinRef struct {
	Queue     string
	Dimension BinDimension
	Index     int
}

// Session is the unit of scheduling. Everything but the reference count is owned by
// the scheduling loop and must not be touched from other goroutines.
type Session struct {
	ID          SessionID
	Interactive bool
	Requestor   Requestor
	State       SessionState
	Request     *AllocationRequest
	Job         string // batch job description; empty for interactive sessions
	Steps       []*Step

	Queue        string   // queue the session was admitted to
	BinRefs      []BinRef // bins currently referencing the session
	AllocationID string
	Nodes        []string // nodes reserved for the session
	SubmitTime   time.Time
	Err          string // why the session ended in error, if it did

	refs       int32
	nextStepID uint32
}

func NewSession(id SessionID, req *AllocationRequest, requestor Requestor, interactive bool, now time.Time) *Session {
	return &Session{
		ID:          id,
		Interactive: interactive,
		Requestor:   requestor,
		State:       StateInit,
		Request:     req,
		SubmitTime:  now,
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("session %d: state:%s, queue:%s, interactive:%t, steps:%d, nodes:%v",
		s.ID, s.State, s.Queue, s.Interactive, len(s.Steps), s.Nodes)
}

// Retain takes a strong reference. Safe from any goroutine.
func (s *Session) Retain() int32 {
	return atomic.AddInt32(&s.refs, 1)
}

// Release drops a strong reference. Safe from any goroutine.
func (s *Session) Release() int32 {
	return atomic.AddInt32(&s.refs, -1)
}

func (s *Session) Refs() int32 {
	return atomic.LoadInt32(&s.refs)
}

// Reapable is true once the session is terminal, nothing references it, and all of
// its steps are gone.
func (s *Session) Reapable() bool {
	return s.State.IsTerminal() && s.Refs() <= 0 && len(s.Steps) == 0
}

// AddStep creates a step on the given nodes. A nil alloc means the step uses the
// session's whole allocation.
func (s *Session) AddStep(job string, alloc *AllocationRequest, nodes []string) *Step {
	s.nextStepID++
	if alloc == nil {
		alloc = s.Request
	}
	step := &Step{
		ID:    s.nextStepID,
		Alloc: alloc,
		Job:   job,
		Nodes: append([]string(nil), nodes...),
	}
	s.Steps = append(s.Steps, step)
	return step
}

// RemoveStep reaps a step. Returns false if no such step exists.
func (s *Session) RemoveStep(id uint32) bool {
	for i, step := range s.Steps {
		if step.ID == id {
			s.Steps = append(s.Steps[:i], s.Steps[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) Step(id uint32) *Step {
	for _, step := range s.Steps {
		if step.ID == id {
			return step
		}
	}
	return nil
}

// Step is one execution unit within a session.
type Step struct {
	ID    uint32
	Alloc *AllocationRequest
	Job   string
	Nodes []string
}

// SessionStatus is a copy of a session's externally visible state. It is safe to
// hand to other goroutines.
type SessionStatus struct {
	ID           SessionID `json:"id"`
	State        string    `json:"state"`
	Queue        string    `json:"queue,omitempty"`
	Interactive  bool      `json:"interactive"`
	AllocationID string    `json:"allocationId,omitempty"`
	Nodes        []string  `json:"nodes,omitempty"`
	Steps        []uint32  `json:"steps,omitempty"`
	Err          string    `json:"err,omitempty"`
	SubmitTime   time.Time `json:"submitTime"`
}

func (s *Session) Status() SessionStatus {
	st := SessionStatus{
		ID:           s.ID,
		State:        s.State.String(),
		Queue:        s.Queue,
		Interactive:  s.Interactive,
		AllocationID: s.AllocationID,
		Nodes:        append([]string(nil), s.Nodes...),
		Err:          s.Err,
		SubmitTime:   s.SubmitTime,
	}
	for _, step := range s.Steps {
		st.Steps = append(st.Steps, step.ID)
	}
	return st
}
