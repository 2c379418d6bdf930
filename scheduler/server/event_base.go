package server

import (
	"container/heap"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/domain"
	"github.com/twitter/scd/scheduler/states"
)

const (
	DefaultMaxActivationsPerStep = 1000
	DefaultHandoffBuffer         = 1024
)

type pendingActivation struct {
	act     *states.Activation
	handler states.Handler
	seq     uint64
}

// activationHeap pops the highest priority first, and among equal priorities the
// oldest first.
type activationHeap []*pendingActivation

func (h activationHeap) Len() int { return len(h) }
func (h activationHeap) Less(i, j int) bool {
	if h[i].act.Priority != h[j].act.Priority {
		return h[i].act.Priority > h[j].act.Priority
	}
	return h[i].seq < h[j].seq
}
func (h activationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *activationHeap) Push(x interface{}) {
	*h = append(*h, x.(*pendingActivation))
}

func (h *activationHeap) Pop() interface{} {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}

type handoff struct {
	session *domain.Session
	state   domain.SessionState
}

// EventBase resolves activations against a Registry and runs their handlers on the
// scheduling loop. Each pending activation holds a reference on its session until
// the handler returns.
//
// Only Handoff may be called off the loop.
type EventBase struct {
	registry   *states.Registry
	pending    activationHeap
	seq        uint64
	handoffCh  chan handoff
	maxPerStep int
	stat       stats.StatsReceiver
}

func NewEventBase(registry *states.Registry, handoffBuffer, maxPerStep int, stat stats.StatsReceiver) *EventBase {
	if handoffBuffer <= 0 {
		handoffBuffer = DefaultHandoffBuffer
	}
	if maxPerStep <= 0 {
		maxPerStep = DefaultMaxActivationsPerStep
	}
	return &EventBase{
		registry:   registry,
		handoffCh:  make(chan handoff, handoffBuffer),
		maxPerStep: maxPerStep,
		stat:       stat,
	}
}

func (eb *EventBase) Registry() *states.Registry {
	return eb.registry
}

// Pending counts activations waiting for Dispatch.
func (eb *EventBase) Pending() int {
	return len(eb.pending)
}

// Activate schedules the handler resolved for state. When nothing resolves the
// activation is dropped, the session is left alone and false is returned.
func (eb *EventBase) Activate(s *domain.Session, state domain.SessionState) bool {
	reg, err := eb.registry.Resolve(state)
	if err != nil {
		log.WithFields(
			log.Fields{
				"sessionID": s.ID,
				"state":     state,
				"err":       err,
			}).Debug("Dropping activation")
		eb.stat.Counter(stats.SchedActivationMissCounter).Inc(1)
		return false
	}
	s.Retain()
	eb.seq++
	heap.Push(&eb.pending, &pendingActivation{
		act:     &states.Activation{Session: s, State: state, Priority: reg.Priority},
		handler: reg.Handler,
		seq:     eb.seq,
	})
	return true
}

// Handoff queues an activation from any goroutine. It is resolved on the loop's
// next step. Blocks while the handoff buffer is full.
func (eb *EventBase) Handoff(s *domain.Session, state domain.SessionState) {
	s.Retain()
	eb.handoffCh <- handoff{session: s, state: state}
}

// drainHandoffs activates everything handed off since the last step.
func (eb *EventBase) drainHandoffs() int {
	n := 0
	for {
		select {
		case h := <-eb.handoffCh:
			eb.Activate(h.session, h.state)
			h.session.Release()
			n++
		default:
			return n
		}
	}
}

// Dispatch runs pending handlers in priority order, at most maxPerStep of them.
// Activations made by a handler join the heap and may run in the same call.
func (eb *EventBase) Dispatch() int {
	n := 0
	for len(eb.pending) > 0 && n < eb.maxPerStep {
		p := heap.Pop(&eb.pending).(*pendingActivation)
		eb.invoke(p)
		n++
	}
	eb.stat.Gauge(stats.SchedPendingActivationsGauge).Update(int64(len(eb.pending)))
	return n
}

func (eb *EventBase) invoke(p *pendingActivation) {
	defer p.act.Session.Release()
	if p.handler == nil {
		eb.stat.Counter(stats.SchedActivationNoopCounter).Inc(1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(
				log.Fields{
					"sessionID": p.act.Session.ID,
					"state":     p.act.State,
					"panic":     r,
					"stack":     string(debug.Stack()),
				}).Error("Handler panicked")
			eb.stat.Counter(stats.SchedHandlerPanicCounter).Inc(1)
		}
	}()
	eb.stat.Counter(stats.SchedActivationsCounter).Inc(1)
	p.handler(p.act)
}
