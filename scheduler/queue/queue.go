// Package queue holds pending sessions. Each Queue keeps a master list of its
// sessions plus two binned indexes, by power demand and by node count, so that
// candidate selection only looks at bins that can fit the free resources.
//
// Queues are not safe for concurrent use. They are owned by the scheduling loop.
package queue

import (
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

type Config struct {
	PowerBins BinRanges
	NodeBins  BinRanges

	// Zero means unlimited.
	MaxSessions int

	// Used to estimate power demand when a request doesn't state one.
	PerNodeWatts int64

	// How long a session may wait in this queue, zero for no limit.
	QueueTimeLimit time.Duration
}

// Resources is what is currently free for scheduling.
type Resources struct {
	Nodes int64
	Power int64     // negative means unlimited
	Now   time.Time // zero disables begin-time checks
}

type Queue struct {
	name     string
	priority int
	cfg      Config

	all       map[domain.SessionID]*domain.Session
	powerBins []*bin
	nodeBins  []*bin
}

func New(name string, priority int, cfg Config) (*Queue, error) {
	if name == "" {
		return nil, domain.BadParameterf("queue name is required")
	}
	if err := cfg.PowerBins.Validate(); err != nil {
		return nil, errors.Wrapf(err, "queue %s power bins", name)
	}
	if err := cfg.NodeBins.Validate(); err != nil {
		return nil, errors.Wrapf(err, "queue %s node bins", name)
	}
	if cfg.MaxSessions < 0 || cfg.PerNodeWatts < 0 || cfg.QueueTimeLimit < 0 {
		return nil, domain.BadParameterf("queue %s has negative limits", name)
	}
	return &Queue{
		name:      name,
		priority:  priority,
		cfg:       cfg,
		all:       map[domain.SessionID]*domain.Session{},
		powerBins: makeBins(cfg.PowerBins),
		nodeBins:  makeBins(cfg.NodeBins),
	}, nil
}

func (q *Queue) Name() string                  { return q.name }
func (q *Queue) Priority() int                 { return q.priority }
func (q *Queue) Config() Config                { return q.cfg }
func (q *Queue) Len() int                      { return len(q.all) }
func (q *Queue) QueueTimeLimit() time.Duration { return q.cfg.QueueTimeLimit }

func (q *Queue) Contains(id domain.SessionID) bool {
	_, ok := q.all[id]
	return ok
}

// PowerValue is the power demand used to bin a session.
func (q *Queue) PowerValue(s *domain.Session) int64 {
	if s.Request.Power > 0 {
		return s.Request.Power
	}
	n := int64(s.Request.MinNodes)
	if n > 0 && q.cfg.PerNodeWatts > math.MaxInt64/n {
		return math.MaxInt64
	}
	return q.cfg.PerNodeWatts * n
}

// NodeValue is the node count used to bin a session.
func (q *Queue) NodeValue(s *domain.Session) int64 {
	return int64(s.Request.MinNodes)
}

// Admit adds a session to the master list and to one bin per dimension. Admitting
// a session that is already present changes nothing.
func (q *Queue) Admit(s *domain.Session) error {
	if q.Contains(s.ID) {
		return nil
	}
	if q.cfg.MaxSessions > 0 && len(q.all) >= q.cfg.MaxSessions {
		return errors.Wrapf(domain.ErrQueueFull, "queue %s holds %d sessions", q.name, len(q.all))
	}
	q.all[s.ID] = s
	q.bin(s)
	s.Queue = q.name
	return nil
}

func (q *Queue) bin(s *domain.Session) {
	pi := q.cfg.PowerBins.Index(q.PowerValue(s))
	ni := q.cfg.NodeBins.Index(q.NodeValue(s))
	q.powerBins[pi].members[s.ID] = s
	q.nodeBins[ni].members[s.ID] = s
	s.BinRefs = append(s.BinRefs,
		domain.BinRef{Queue: q.name, Dimension: domain.PowerDimension, Index: pi},
		domain.BinRef{Queue: q.name, Dimension: domain.NodeDimension, Index: ni})
}

// unbin drops every bin reference this queue holds on the session.
func (q *Queue) unbin(s *domain.Session) {
	kept := s.BinRefs[:0]
	for _, ref := range s.BinRefs {
		if ref.Queue != q.name {
			kept = append(kept, ref)
			continue
		}
		bins := q.nodeBins
		if ref.Dimension == domain.PowerDimension {
			bins = q.powerBins
		}
		if ref.Index < len(bins) {
			delete(bins[ref.Index].members, s.ID)
		}
	}
	s.BinRefs = kept
}

// Remove takes a session out of every bin and then out of the master list.
// Removing a session that isn't present is a no-op.
func (q *Queue) Remove(s *domain.Session) {
	if !q.Contains(s.ID) {
		return
	}
	q.unbin(s)
	delete(q.all, s.ID)
	if s.Queue == q.name {
		s.Queue = ""
	}
}

// ReconfigureBins replaces both sets of bin ranges and re-buckets every admitted
// session. The master list is untouched.
func (q *Queue) ReconfigureBins(power, nodes BinRanges) error {
	if err := power.Validate(); err != nil {
		return errors.Wrapf(err, "queue %s power bins", q.name)
	}
	if err := nodes.Validate(); err != nil {
		return errors.Wrapf(err, "queue %s node bins", q.name)
	}
	for _, s := range q.all {
		q.unbin(s)
	}
	q.cfg.PowerBins = power
	q.cfg.NodeBins = nodes
	q.powerBins = makeBins(power)
	q.nodeBins = makeBins(nodes)
	for _, s := range q.all {
		q.bin(s)
	}
	return nil
}

func (q *Queue) eligible(s *domain.Session, avail Resources, skip func(*domain.Session) bool) bool {
	if q.NodeValue(s) > avail.Nodes {
		return false
	}
	if avail.Power >= 0 && q.PowerValue(s) > avail.Power {
		return false
	}
	if !avail.Now.IsZero() && s.Request.Begin.After(avail.Now) {
		return false
	}
	return skip == nil || !skip(s)
}

// candidateBins returns the bins of the dimension with the fewest sessions that
// could possibly fit avail. Bins whose low bound exceeds the free amount can't
// hold a fitting session and are never looked at.
func (q *Queue) candidateBins(avail Resources) []*bin {
	nodeBins := q.nodeBins[:q.cfg.NodeBins.Index(avail.Nodes)+1]
	if avail.Power < 0 {
		return nodeBins
	}
	powerBins := q.powerBins[:q.cfg.PowerBins.Index(avail.Power)+1]
	if count(powerBins) < count(nodeBins) {
		return powerBins
	}
	return nodeBins
}

func count(bins []*bin) int {
	n := 0
	for _, b := range bins {
		n += len(b.members)
	}
	return n
}

// better orders candidates: higher priority first, then earlier submission.
func better(a, b *domain.Session) bool {
	if a.Request.Priority != b.Request.Priority {
		return a.Request.Priority > b.Request.Priority
	}
	return a.ID < b.ID
}

// SelectCandidate returns the best session that fits avail, or nil if none does.
// skip lets the caller exclude sessions already tried in this pass.
func (q *Queue) SelectCandidate(avail Resources, skip func(*domain.Session) bool) *domain.Session {
	var best *domain.Session
	for _, b := range q.candidateBins(avail) {
		for _, s := range b.members {
			if !q.eligible(s, avail, skip) {
				continue
			}
			if best == nil || better(s, best) {
				best = s
			}
		}
	}
	return best
}

// Eligible returns every session that fits avail, best first.
func (q *Queue) Eligible(avail Resources) []*domain.Session {
	var out []*domain.Session
	for _, b := range q.candidateBins(avail) {
		for _, s := range b.members {
			if q.eligible(s, avail, nil) {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// Sessions returns the master list ordered by session id.
func (q *Queue) Sessions() []*domain.Session {
	out := make([]*domain.Session, 0, len(q.all))
	for _, s := range q.all {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BinMembers returns the ids held by bin i of a dimension, sorted.
func (q *Queue) BinMembers(dim domain.BinDimension, i int) []domain.SessionID {
	bins := q.nodeBins
	if dim == domain.PowerDimension {
		bins = q.powerBins
	}
	if i < 0 || i >= len(bins) {
		return nil
	}
	out := make([]domain.SessionID, 0, len(bins[i].members))
	for id := range bins[i].members {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// BinIndex returns the bin of a dimension that a value falls into.
func (q *Queue) BinIndex(dim domain.BinDimension, value int64) int {
	if dim == domain.PowerDimension {
		return q.cfg.PowerBins.Index(value)
	}
	return q.cfg.NodeBins.Index(value)
}

// Info summarizes the queue for listings.
type Info struct {
	Name      string    `json:"name"`
	Priority  int       `json:"priority"`
	Pending   int       `json:"pending"`
	Max       int       `json:"maxSessions"`
	PowerBins []BinInfo `json:"powerBins"`
	NodeBins  []BinInfo `json:"nodeBins"`
}

func (q *Queue) Info() Info {
	return Info{
		Name:      q.name,
		Priority:  q.priority,
		Pending:   len(q.all),
		Max:       q.cfg.MaxSessions,
		PowerBins: binInfos(q.powerBins),
		NodeBins:  binInfos(q.nodeBins),
	}
}
