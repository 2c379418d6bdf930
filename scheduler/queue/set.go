package queue

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

// Set is the scheduler's collection of queues, iterated in scheduling order:
// higher priority first, then by name.
type Set struct {
	byName  map[string]*Queue
	ordered []*Queue
}

func NewSet() *Set {
	return &Set{byName: map[string]*Queue{}}
}

func (qs *Set) Add(q *Queue) error {
	if _, ok := qs.byName[q.name]; ok {
		return domain.BadParameterf("queue %s already exists", q.name)
	}
	qs.byName[q.name] = q
	qs.ordered = append(qs.ordered, q)
	sort.SliceStable(qs.ordered, func(i, j int) bool {
		a, b := qs.ordered[i], qs.ordered[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.name < b.name
	})
	return nil
}

func (qs *Set) Get(name string) *Queue {
	return qs.byName[name]
}

// List returns the queues in scheduling order.
func (qs *Set) List() []*Queue {
	return append([]*Queue(nil), qs.ordered...)
}

// Pending counts sessions across all queues.
func (qs *Set) Pending() int {
	n := 0
	for _, q := range qs.ordered {
		n += q.Len()
	}
	return n
}

// Remove deletes a queue. Its pending sessions are moved to migrateTo when given;
// sessions that can't be moved (no target, or the target is full) are returned so
// the caller can reject them. The removed queue is left empty either way.
func (qs *Set) Remove(name, migrateTo string) ([]*domain.Session, error) {
	q, ok := qs.byName[name]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "queue %s", name)
	}
	var target *Queue
	if migrateTo != "" {
		if migrateTo == name {
			return nil, domain.BadParameterf("cannot migrate queue %s into itself", name)
		}
		if target = qs.byName[migrateTo]; target == nil {
			return nil, errors.Wrapf(domain.ErrNotFound, "migration target queue %s", migrateTo)
		}
	}

	var orphans []*domain.Session
	for _, s := range q.Sessions() {
		q.Remove(s)
		if target == nil || target.Admit(s) != nil {
			orphans = append(orphans, s)
		}
	}

	delete(qs.byName, name)
	for i, o := range qs.ordered {
		if o == q {
			qs.ordered = append(qs.ordered[:i], qs.ordered[i+1:]...)
			break
		}
	}
	return orphans, nil
}
