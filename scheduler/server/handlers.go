package server

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/log/tags"
	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/domain"
	"github.com/twitter/scd/scheduler/events"
	"github.com/twitter/scd/scheduler/queue"
	"github.com/twitter/scd/scheduler/states"
)

// Handler priorities. Ending a session outranks moving it forward, and scheduling
// passes run only once nothing else is pending.
const (
	PrioritySchedule = 0
	PriorityAdmit    = 10
	PriorityAllocate = 20
	PriorityEnd      = 30
	PriorityError    = 40
)

func (f *Framework) registerHandlers() {
	regs := []states.Registration{
		{State: domain.StateInit, Handler: f.handleInit, Priority: PriorityAdmit},
		{State: domain.StateQueued, Handler: f.handleQueued, Priority: PriorityAdmit},
		{State: domain.StateSchedule, Handler: f.handleSchedule, Priority: PrioritySchedule},
		{State: domain.StateAllocd, Handler: f.handleAllocd, Priority: PriorityAllocate},
		{State: domain.StateActive, Handler: f.handleActive, Priority: PriorityAllocate},
		{State: domain.StateTerminated, Handler: f.handleEnd, Priority: PriorityEnd},
		{State: domain.StateCanceled, Handler: f.handleEnd, Priority: PriorityEnd},
		{State: domain.StateError, Handler: f.handleError, Priority: PriorityError},
		// Known states without work of their own.
		{State: domain.StateAny, Handler: nil, Priority: PrioritySchedule},
	}
	for _, r := range regs {
		if err := f.eb.Registry().Register(r.State, r.Handler, r.Priority); err != nil {
			log.WithFields(
				log.Fields{
					"state": r.State,
					"err":   err,
				}).Error("Failed to register handler")
		}
	}
}

// handleInit admits a session to the first of its queues that takes it.
func (f *Framework) handleInit(a *states.Activation) {
	s := a.Session
	if s.State != domain.StateInit {
		return
	}
	names := s.Request.Queues
	if len(names) == 0 {
		names = []string{f.config.DefaultQueue}
	}
	var reasons []string
	for _, name := range names {
		q := f.queues.Get(name)
		if q == nil {
			reasons = append(reasons, fmt.Sprintf("queue %s not found", name))
			continue
		}
		if err := q.Admit(s); err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		f.eb.Activate(s, domain.StateQueued)
		return
	}
	s.Err = "not admitted: " + strings.Join(reasons, "; ")
	f.eb.Activate(s, domain.StateRejected)
}

func (f *Framework) handleQueued(a *states.Activation) {
	s := a.Session
	if s.State != domain.StateInit {
		return
	}
	s.State = domain.StateQueued
	if q := f.queues.Get(s.Queue); q != nil {
		f.timers.start(s, queueTimer, q.QueueTimeLimit())
	}
	if wait := time.Until(s.Request.Begin); !s.Request.Begin.IsZero() && wait > 0 {
		f.timers.start(s, beginTimer, wait)
	}
	f.stat.Counter(stats.SchedQueuedCounter).Inc(1)
	log.WithFields(sessionTags(s).Fields()).Info("Session queued")
	f.journalSession(s)
	f.emitTransition(s)
	f.requestSchedule()
}

// handleSchedule runs one scheduling pass: queues in priority order, and within a
// queue the best eligible session first, until nothing more fits.
func (f *Framework) handleSchedule(a *states.Activation) {
	f.schedulePending = false
	defer f.stat.Latency(stats.SchedPassLatency_ms).Time().Stop()

	now := time.Now()
	for _, q := range f.queues.List() {
		tried := map[domain.SessionID]bool{}
		skip := func(s *domain.Session) bool {
			return s.State != domain.StateQueued || s.AllocationID != "" || tried[s.ID]
		}
		for {
			avail := queue.Resources{Nodes: f.nodes.available(), Power: f.availablePower(), Now: now}
			if avail.Nodes == 0 {
				return
			}
			s := q.SelectCandidate(avail, skip)
			if s == nil {
				break
			}
			tried[s.ID] = true
			f.allocate(q, s)
		}
	}
}

func (f *Framework) allocate(q *queue.Queue, s *domain.Session) {
	alloc, err := f.alg.Allocate(s.Request, f.nodes)
	switch {
	case err == nil:
		f.nodes.reserve(s.ID, alloc, s.Request.Exclusive)
		f.reservePower(s.ID, q.PowerValue(s))
		s.AllocationID = alloc.ID
		s.Nodes = alloc.Nodes
		f.stat.Histogram(stats.SchedAllocatedNodesHistogram).Update(int64(len(alloc.Nodes)))
		log.WithFields(
			sessionTags(s).With(log.Fields{
				"allocationID": alloc.ID,
				"nodes":        alloc.Nodes,
			})).Info("Allocated session")
		f.eb.Activate(s, domain.StateAllocd)
	case domain.IsUnsatisfiable(err):
		s.Err = err.Error()
		f.stat.Counter(stats.SchedAllocFailureCounter).Inc(1)
		f.eb.Activate(s, domain.StateAllocFailed)
	default:
		log.WithFields(
			log.Fields{
				"sessionID": s.ID,
				"queue":     q.Name(),
				"err":       err,
			}).Debug("Session stays queued")
	}
}

func (f *Framework) handleAllocd(a *states.Activation) {
	s := a.Session
	if s.State != domain.StateQueued {
		return
	}
	s.State = domain.StateAllocd
	f.timers.stop(s, queueTimer)
	f.timers.stop(s, beginTimer)
	f.timers.start(s, walltimeTimer, s.Request.Walltime)
	f.stat.Counter(stats.SchedAllocatedCounter).Inc(1)
	f.journalSession(s)
	f.emitTransition(s)
	if !s.Interactive && s.Job != "" {
		s.AddStep(s.Job, nil, s.Nodes)
		f.eb.Activate(s, domain.StateActive)
	}
}

func (f *Framework) handleActive(a *states.Activation) {
	s := a.Session
	if s.State != domain.StateAllocd {
		return
	}
	s.State = domain.StateActive
	f.journalSession(s)
	f.emitTransition(s)
}

// handleEnd serves both TERMINATED and CANCELED. Everything the session holds is
// given back before its state changes.
func (f *Framework) handleEnd(a *states.Activation) {
	s := a.Session
	if s.State.IsTerminal() {
		return
	}
	if q := f.queues.Get(s.Queue); q != nil {
		q.Remove(s)
	}
	f.nodes.release(s.ID, s.Nodes)
	f.releasePower(s.ID)
	s.Steps = nil
	f.timers.stopAll(s)
	s.State = a.State

	if a.State == domain.StateCanceled {
		f.stat.Counter(stats.SchedCanceledCounter).Inc(1)
	} else {
		f.stat.Counter(stats.SchedTerminatedCounter).Inc(1)
	}
	log.WithFields(sessionTags(s).With(log.Fields{"err": s.Err})).Info("Session ended")
	f.journalSession(s)
	f.emitTransition(s)
	f.requestSchedule()
}

// handleError takes every error-class state without a handler of its own. Timer
// activations for sessions that already moved on are ignored.
func (f *Framework) handleError(a *states.Activation) {
	s := a.Session
	if s.State.IsTerminal() {
		return
	}
	switch a.State {
	case domain.StateQueueTimeExceeded:
		if s.State != domain.StateQueued || s.AllocationID != "" {
			return
		}
	case domain.StateWalltimeExceeded:
		if s.State != domain.StateAllocd && s.State != domain.StateActive {
			return
		}
	}

	if s.Err == "" {
		s.Err = a.State.String()
	}
	s.State = a.State
	f.stat.Counter(stats.SchedErrorCounter).Inc(1)
	log.WithFields(sessionTags(s).With(log.Fields{"err": s.Err})).Error("Session failed")
	f.emitter.Emit(f.newEvent(events.TypeException, events.ClassSoftware, events.SeverityWarning, s.Queue,
		fmt.Sprintf("session %d %s: %s", s.ID, a.State, s.Err),
		map[string]string{"SESSION": sessionKey(s.ID), "STATE": a.State.String()}))
	f.journalSession(s)
	f.eb.Activate(s, domain.StateTerminated)
}

func sessionTags(s *domain.Session) tags.LogTags {
	t := tags.LogTags{SessionID: uint32(s.ID), Queue: s.Queue, State: s.State.String()}
	if s.Request != nil {
		t.Tag = s.Request.Name
	}
	return t
}
