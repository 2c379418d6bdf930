package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateClasses(t *testing.T) {
	assert.True(t, StateTerminated.IsTerminal())
	assert.True(t, StateCanceled.IsTerminal())
	assert.False(t, StateAllocd.IsTerminal())

	assert.True(t, StateAllocFailed.IsErrorClass())
	assert.False(t, StateError.IsErrorClass())
	assert.False(t, StateQueued.IsErrorClass())

	assert.True(t, StateNodeFailed.IsErrorClass())
	assert.False(t, StateAny.IsErrorClass())
	assert.Equal(t, "QUEUED", StateQueued.String())
	assert.Equal(t, "STATE(42)", SessionState(42).String())

	s, err := ParseState("ALLOCD")
	assert.NoError(t, err)
	assert.Equal(t, StateAllocd, s)
	_, err = ParseState("nope")
	assert.True(t, IsBadParameter(err))
}

func TestSessionRefcountIsAtomic(t *testing.T) {
	s := NewSession(1, validRequest(), Requestor{UID: 1, Endpoint: "host"}, false, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Retain()
			s.Release()
			s.Retain()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), s.Refs())
}

func TestSessionSteps(t *testing.T) {
	s := NewSession(7, validRequest(), Requestor{Endpoint: "host"}, true, time.Now())
	assert.Equal(t, StateInit, s.State)

	first := s.AddStep("hostname", nil, []string{"n1", "n2"})
	narrowed := s.Request.Copy()
	narrowed.MinNodes, narrowed.MaxNodes = 1, 1
	second := s.AddStep("date", narrowed, []string{"n2"})
	assert.Equal(t, uint32(1), first.ID)
	assert.Equal(t, uint32(2), second.ID)
	assert.Same(t, s.Request, first.Alloc)
	assert.Equal(t, second, s.Step(2))

	assert.True(t, s.RemoveStep(1))
	assert.False(t, s.RemoveStep(1))
	assert.Equal(t, []uint32{2}, s.Status().Steps)

	s.State = StateTerminated
	assert.False(t, s.Reapable(), "a step is still running")
	s.RemoveStep(2)
	s.Retain()
	assert.False(t, s.Reapable(), "still referenced")
	s.Release()
	assert.True(t, s.Reapable())
}

func TestRequestorValidate(t *testing.T) {
	assert.True(t, IsBadParameter(Requestor{UID: 5}.Validate()))
	assert.NoError(t, Requestor{UID: 5, Endpoint: "login1"}.Validate())
}

func TestNodeHoldRelease(t *testing.T) {
	n := NewNode("n1", 4, nil)
	assert.True(t, n.Usable(true))

	n.Hold(1, 2, false)
	assert.Equal(t, 2, n.FreeSlots())
	assert.False(t, n.Usable(true), "shared node can't be taken exclusively")
	assert.True(t, n.Usable(false))

	n.ReleaseSession(1)
	n.ReleaseSession(1)
	assert.True(t, n.Idle())
	assert.Equal(t, 0, n.UsedSlots)

	n.Hold(2, 1, true)
	assert.Equal(t, 0, n.FreeSlots())
	assert.False(t, n.Usable(false))
	n.ReleaseSession(2)
	assert.True(t, n.Usable(true))

	n.State = NodeDown
	assert.False(t, n.Usable(false))
}

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, IsAllocationFailure(ErrInsufficientResources))
	assert.True(t, IsAllocationFailure(ErrUnsatisfiable))
	assert.False(t, IsUnsatisfiable(ErrInsufficientResources))
	assert.True(t, IsBadParameter(BadParameterf("missing %s", "hostname")))
	assert.False(t, IsNotFound(ErrQueueFull))
}
