package server

import (
	"sync"
	"time"

	"github.com/twitter/scd/scheduler/domain"
)

type timerKind int

const (
	queueTimer timerKind = iota
	walltimeTimer
	beginTimer
)

// timerStates is what each kind activates when it fires. A begin timer only asks
// for a scheduling pass; the session became eligible.
var timerStates = map[timerKind]domain.SessionState{
	queueTimer:    domain.StateQueueTimeExceeded,
	walltimeTimer: domain.StateWalltimeExceeded,
	beginTimer:    domain.StateSchedule,
}

type timerKey struct {
	id   domain.SessionID
	kind timerKind
}

// sessionTimers fire activations through the event base's handoff channel.
// Timers hold a reference to their session until they fire or are stopped.
type sessionTimers struct {
	eb *EventBase

	mu     sync.Mutex
	timers map[timerKey]*time.Timer
}

func newSessionTimers(eb *EventBase) *sessionTimers {
	return &sessionTimers{eb: eb, timers: map[timerKey]*time.Timer{}}
}

// start arms a timer, replacing any timer of the same kind for the session. A
// non-positive limit arms nothing.
func (st *sessionTimers) start(s *domain.Session, kind timerKind, limit time.Duration) {
	if limit <= 0 {
		return
	}
	st.stop(s, kind)
	state := timerStates[kind]
	key := timerKey{id: s.ID, kind: kind}

	st.mu.Lock()
	defer st.mu.Unlock()
	s.Retain()
	var t *time.Timer
	t = time.AfterFunc(limit, func() {
		st.mu.Lock()
		current := st.timers[key] == t
		if current {
			delete(st.timers, key)
		}
		st.mu.Unlock()
		if current {
			st.eb.Handoff(s, state)
		}
		s.Release()
	})
	st.timers[key] = t
}

// stop disarms a timer. Stopping a timer that already fired is harmless: its
// activation is ignored by the handlers once the session moved on.
func (st *sessionTimers) stop(s *domain.Session, kind timerKind) {
	key := timerKey{id: s.ID, kind: kind}
	st.mu.Lock()
	t, ok := st.timers[key]
	delete(st.timers, key)
	st.mu.Unlock()
	if ok && t.Stop() {
		s.Release()
	}
}

func (st *sessionTimers) stopAll(s *domain.Session) {
	st.stop(s, queueTimer)
	st.stop(s, walltimeTimer)
	st.stop(s, beginTimer)
}

func (st *sessionTimers) armed(id domain.SessionID, kind timerKind) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.timers[timerKey{id: id, kind: kind}]
	return ok
}
