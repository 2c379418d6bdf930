package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/domain"
	"github.com/twitter/scd/scheduler/states"
)

func makeEventBase(t *testing.T, maxPerStep int) (*EventBase, stats.StatsRegistry) {
	statsRegistry := stats.NewFinagleStatsRegistry()
	statsReceiver, _ := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return statsRegistry }, 0)
	return NewEventBase(states.NewRegistry(), 4, maxPerStep, statsReceiver), statsRegistry
}

func testSession(id domain.SessionID) *domain.Session {
	req := &domain.AllocationRequest{MinNodes: 1, MaxNodes: 1}
	return domain.NewSession(id, req, domain.Requestor{UID: 1, Endpoint: "login1"}, true, time.Now())
}

// recorder registers handlers that log which state they ran for.
type recorder struct {
	ran []domain.SessionState
}

func (r *recorder) handler(a *states.Activation) {
	r.ran = append(r.ran, a.State)
}

func Test_EventBase_NoHandlerNoFallback(t *testing.T) {
	eb, statsRegistry := makeEventBase(t, 0)
	rec := &recorder{}
	require.NoError(t, eb.Registry().Register(domain.StateQueued, rec.handler, 1))

	s := testSession(1)
	assert.False(t, eb.Activate(s, domain.StateActive))
	assert.Equal(t, 0, eb.Dispatch())

	assert.Empty(t, rec.ran)
	assert.Equal(t, domain.StateInit, s.State)
	assert.Equal(t, int32(0), s.Refs())
	stats.VerifyStats("miss", statsRegistry, t, map[string]stats.Rule{
		stats.SchedActivationMissCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_EventBase_HigherPriorityFirst(t *testing.T) {
	eb, _ := makeEventBase(t, 0)
	rec := &recorder{}
	require.NoError(t, eb.Registry().Register(domain.StateQueued, rec.handler, 1))
	require.NoError(t, eb.Registry().Register(domain.StateAllocd, rec.handler, 5))

	s := testSession(1)
	require.True(t, eb.Activate(s, domain.StateQueued))
	require.True(t, eb.Activate(s, domain.StateAllocd))
	assert.Equal(t, int32(2), s.Refs())

	assert.Equal(t, 2, eb.Dispatch())
	assert.Equal(t, []domain.SessionState{domain.StateAllocd, domain.StateQueued}, rec.ran)
	assert.Equal(t, int32(0), s.Refs())
}

func Test_EventBase_EqualPriorityInOrder(t *testing.T) {
	eb, _ := makeEventBase(t, 0)
	var order []domain.SessionID
	require.NoError(t, eb.Registry().Register(domain.StateQueued, func(a *states.Activation) {
		order = append(order, a.Session.ID)
	}, 3))

	for id := domain.SessionID(1); id <= 5; id++ {
		eb.Activate(testSession(id), domain.StateQueued)
	}
	eb.Dispatch()
	assert.Equal(t, []domain.SessionID{1, 2, 3, 4, 5}, order)
}

func Test_EventBase_ErrorClassFallsBack(t *testing.T) {
	eb, _ := makeEventBase(t, 0)
	anyRec, errRec := &recorder{}, &recorder{}
	require.NoError(t, eb.Registry().Register(domain.StateAny, anyRec.handler, 0))
	require.NoError(t, eb.Registry().Register(domain.StateError, errRec.handler, 0))

	s := testSession(1)
	eb.Activate(s, domain.StateWalltimeExceeded)
	eb.Activate(s, domain.StateActive)
	eb.Activate(s, domain.StateError)
	eb.Dispatch()

	assert.Equal(t, []domain.SessionState{domain.StateWalltimeExceeded}, errRec.ran)
	assert.Equal(t, []domain.SessionState{domain.StateActive, domain.StateError}, anyRec.ran,
		"the error marker is not above itself")
}

func Test_EventBase_Handoff(t *testing.T) {
	eb, _ := makeEventBase(t, 0)
	rec := &recorder{}
	require.NoError(t, eb.Registry().Register(domain.StateCanceled, rec.handler, 0))

	s := testSession(1)
	done := make(chan struct{})
	go func() {
		eb.Handoff(s, domain.StateCanceled)
		close(done)
	}()
	<-done
	assert.Equal(t, int32(1), s.Refs())
	assert.Empty(t, rec.ran, "handoffs wait for the loop")

	assert.Equal(t, 1, eb.drainHandoffs())
	assert.Equal(t, 1, eb.Dispatch())
	assert.Equal(t, []domain.SessionState{domain.StateCanceled}, rec.ran)
	assert.Equal(t, int32(0), s.Refs())
}

func Test_EventBase_RecoversHandlerPanic(t *testing.T) {
	eb, statsRegistry := makeEventBase(t, 0)
	require.NoError(t, eb.Registry().Register(domain.StateQueued, func(a *states.Activation) {
		panic("boom")
	}, 0))
	rec := &recorder{}
	require.NoError(t, eb.Registry().Register(domain.StateAllocd, rec.handler, 0))

	s := testSession(1)
	eb.Activate(s, domain.StateQueued)
	eb.Activate(s, domain.StateAllocd)
	assert.Equal(t, 2, eb.Dispatch())

	assert.Equal(t, []domain.SessionState{domain.StateAllocd}, rec.ran, "later activations still run")
	assert.Equal(t, domain.StateInit, s.State)
	assert.Equal(t, int32(0), s.Refs())
	stats.VerifyStats("panic", statsRegistry, t, map[string]stats.Rule{
		stats.SchedHandlerPanicCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedActivationsCounter:  {Checker: stats.Int64EqTest, Value: 2},
	})
}

func Test_EventBase_NilHandlerIsNoop(t *testing.T) {
	eb, statsRegistry := makeEventBase(t, 0)
	require.NoError(t, eb.Registry().Register(domain.StateAny, nil, 0))

	s := testSession(1)
	require.True(t, eb.Activate(s, domain.StateActive))
	assert.Equal(t, 1, eb.Dispatch())
	assert.Equal(t, int32(0), s.Refs())
	stats.VerifyStats("noop", statsRegistry, t, map[string]stats.Rule{
		stats.SchedActivationNoopCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_EventBase_BoundedPerStep(t *testing.T) {
	eb, _ := makeEventBase(t, 2)
	rec := &recorder{}
	require.NoError(t, eb.Registry().Register(domain.StateQueued, rec.handler, 0))

	for id := domain.SessionID(1); id <= 3; id++ {
		eb.Activate(testSession(id), domain.StateQueued)
	}
	assert.Equal(t, 2, eb.Dispatch())
	assert.Equal(t, 1, eb.Pending())
	assert.Equal(t, 1, eb.Dispatch())
	assert.Len(t, rec.ran, 3)
}
