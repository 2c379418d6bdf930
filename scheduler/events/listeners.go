package events

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/twitter/scd/scheduler/store"
)

// LogListener writes events to the log, at most limit per second with the given
// burst. Suppressed events are counted and reported with the next logged one.
type LogListener struct {
	limiter    *rate.Limiter
	suppressed int64
}

func NewLogListener(limit float64, burst int) *LogListener {
	return &LogListener{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

func (l *LogListener) Name() string { return "log" }

func (l *LogListener) Deliver(ev Event) error {
	if !l.limiter.Allow() {
		atomic.AddInt64(&l.suppressed, 1)
		return nil
	}
	fields := ev.Fields()
	if n := atomic.SwapInt64(&l.suppressed, 0); n > 0 {
		fields["suppressed"] = n
	}
	entry := log.WithFields(fields)
	switch ev.Severity {
	case SeverityFatal:
		entry.Error(ev.Message)
	case SeverityWarning:
		entry.Warn(ev.Message)
	default:
		entry.Info(ev.Message)
	}
	return nil
}

// Suppressed is the number of events dropped by the rate limit and not yet
// reported.
func (l *LogListener) Suppressed() int64 {
	return atomic.LoadInt64(&l.suppressed)
}

// StoreListener records each event in the RAS-EVENT category, keyed by hostname.
type StoreListener struct {
	journal *store.Journal
}

func NewStoreListener(journal *store.Journal) *StoreListener {
	return &StoreListener{journal: journal}
}

func (l *StoreListener) Name() string { return "store" }

func (l *StoreListener) Deliver(ev Event) error {
	key := ev.Location.Hostname
	if key == "" {
		key = "cluster"
	}
	fields := map[string]string{}
	for k, v := range ev.Fields() {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return l.journal.Write(store.Unit{
		Name:     "ras-event",
		Category: store.CategoryEvent,
		Records:  []store.Record{{Key: key, Time: ev.Timestamp, Fields: fields}},
	})
}
