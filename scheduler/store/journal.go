package store

import (
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/async"
	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/domain"
)

const DefaultOpenRetries = 3

// Unit is a group of records written all-or-nothing.
type Unit struct {
	Name     string
	Category string
	Records  []Record
}

// Journal writes Units to a Store off the scheduling loop. Record and FetchAsync
// must be called from the goroutine that drains the Runner; their callbacks run
// there too.
type Journal struct {
	store  Store
	runner *async.Runner
	stat   stats.StatsReceiver

	// NewBackOff builds the retry policy used to open a handle.
	NewBackOff func() backoff.BackOff
}

func NewJournal(s Store, runner *async.Runner, stat stats.StatsReceiver) *Journal {
	return &Journal{
		store:  s,
		runner: runner,
		stat:   stat,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return backoff.WithMaxRetries(b, DefaultOpenRetries)
		},
	}
}

// Record writes unit asynchronously and reports the outcome to cb.
func (j *Journal) Record(unit Unit, cb func(error)) {
	j.runner.RunAsync(func() error {
		return j.Write(unit)
	}, func(err error) {
		if err != nil {
			j.stat.Counter(stats.StoreFailureCounter).Inc(1)
		}
		if cb != nil {
			cb(err)
		}
	})
}

// Write stores every record of unit and commits. If any store fails after the
// handle is open, the partial write is rolled back and ErrTransport is returned.
func (j *Journal) Write(unit Unit) error {
	defer j.stat.Latency(stats.StoreRecordLatency_ms).Time().Stop()

	var h Handle
	tries := 0
	err := backoff.Retry(func() error {
		tries++
		var err error
		h, err = j.store.Open(unit.Name, nil)
		if err != nil {
			log.Debugf("journal open try #%d for %s failed: %v", tries, unit.Name, err)
		}
		return err
	}, j.NewBackOff())
	if err != nil {
		return errors.Wrapf(domain.ErrTransport, "opening store for %s after %d tries: %v", unit.Name, tries, err)
	}
	defer func() {
		if err := j.store.Close(h); err != nil {
			log.Infof("closing store handle for %s: %v", unit.Name, err)
		}
	}()

	for _, rec := range unit.Records {
		if err := j.store.Store(h, unit.Category, rec); err != nil {
			return j.rollback(h, unit, err)
		}
	}
	if err := j.store.Commit(h); err != nil {
		return j.rollback(h, unit, err)
	}
	j.stat.Counter(stats.StoreCommitCounter).Inc(1)
	return nil
}

func (j *Journal) rollback(h Handle, unit Unit, cause error) error {
	j.stat.Counter(stats.StoreRollbackCounter).Inc(1)
	if err := j.store.Rollback(h); err != nil {
		log.Errorf("rollback of %s failed: %v", unit.Name, err)
	}
	if domain.IsTransport(cause) {
		return cause
	}
	return errors.Wrapf(domain.ErrTransport, "writing %s: %v", unit.Name, cause)
}

// Fetch reads committed records synchronously.
func (j *Journal) Fetch(category, key string) ([]Record, error) {
	h, err := j.store.Open("fetch", nil)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrTransport, "opening store: %v", err)
	}
	defer j.store.Close(h)
	return j.store.Fetch(h, category, key)
}

// FetchAsync runs Fetch off the loop and hands the result to cb.
func (j *Journal) FetchAsync(category, key string, cb func([]Record, error)) {
	var recs []Record
	j.runner.RunAsync(func() error {
		var err error
		recs, err = j.Fetch(category, key)
		return err
	}, func(err error) {
		cb(recs, err)
	})
}
