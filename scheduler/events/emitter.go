package events

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/stats"
)

const DefaultListenerBuffer = 256

// Listener receives events on its own goroutine. Deliver may block; a slow listener
// only loses its own events.
type Listener interface {
	Name() string
	Deliver(Event) error
}

type subscription struct {
	listener Listener
	ch       chan Event
}

// Emitter fans events out to its listeners. Emit never blocks: an event that
// doesn't fit in a listener's buffer is dropped and counted.
type Emitter struct {
	stat    stats.StatsReceiver
	bufSize int

	mu     sync.RWMutex
	subs   []*subscription
	closed bool
	wg     sync.WaitGroup
}

func NewEmitter(bufSize int, stat stats.StatsReceiver) *Emitter {
	if bufSize <= 0 {
		bufSize = DefaultListenerBuffer
	}
	return &Emitter{stat: stat, bufSize: bufSize}
}

func (e *Emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	sub := &subscription{listener: l, ch: make(chan Event, e.bufSize)}
	e.subs = append(e.subs, sub)
	e.wg.Add(1)
	go e.deliver(sub)
}

func (e *Emitter) deliver(sub *subscription) {
	defer e.wg.Done()
	for ev := range sub.ch {
		if err := sub.listener.Deliver(ev); err != nil {
			e.stat.Counter(stats.EventsListenerErrCounter).Inc(1)
			log.WithFields(log.Fields{
				"listener": sub.listener.Name(),
				"err":      err,
			}).Info("event listener failed")
		}
	}
}

// Emit hands ev to every listener. Events emitted after Close are discarded.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	e.stat.Counter(stats.EventsEmittedCounter).Inc(1)
	for _, sub := range e.subs {
		select {
		case sub.ch <- ev:
		default:
			e.stat.Counter(stats.EventsDroppedCounter).Inc(1)
			log.Debugf("dropped event for listener %s: %s", sub.listener.Name(), ev)
		}
	}
}

// Close stops accepting events and waits for listeners to drain their buffers.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, sub := range e.subs {
		close(sub.ch)
	}
	e.mu.Unlock()
	e.wg.Wait()
}
