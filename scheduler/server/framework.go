package server

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/async"
	"github.com/twitter/scd/common/allocator"
	"github.com/twitter/scd/common/log/hooks"
	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/alg"
	"github.com/twitter/scd/scheduler/control"
	"github.com/twitter/scd/scheduler/domain"
	"github.com/twitter/scd/scheduler/events"
	"github.com/twitter/scd/scheduler/queue"
	"github.com/twitter/scd/scheduler/states"
	"github.com/twitter/scd/scheduler/store"
)

const (
	DefaultStepRate           = 250 * time.Millisecond
	DefaultQueueName          = "default"
	DefaultHistorySize        = 10000
	DefaultLogEventsPerSecond = 10.0
	DefaultLogEventsBurst     = 20
	DefaultRequestBuffer      = 1000
)

// ErrClosed is returned by calls made after the scheduling loop exited.
var ErrClosed = errors.New("scheduler closed")

// QueueConfiguration is a queue created at startup.
type QueueConfiguration struct {
	Name     string
	Priority int
	queue.Config
}

// SchedulerConfiguration variables read at initialization
// DebugMode - if true, the loop isn't started and tests drive the framework by calling step().
// StepRate - how often the loop wakes up when nothing is pending.
// MaxActivationsPerStep - handlers run per step at most; the rest wait for the next step.
// HandoffBuffer - capacity of the channel carrying activations from timers and other goroutines.
// DefaultQueue - queue used by requests that name none.
// Algorithms - allocation components to consider, by name, empty for all.
// HistorySize - reaped sessions remembered for Status.
// PowerBudget - watts shared by all allocated sessions, 0 for unlimited.
// StoreEvents - also journal events to the store.
type SchedulerConfiguration struct {
	DebugMode             bool
	StepRate              time.Duration
	MaxActivationsPerStep int
	HandoffBuffer         int
	DefaultQueue          string
	Queues                []QueueConfiguration
	Nodes                 []NodeConfiguration
	Algorithms            []string
	AlgorithmParams       map[string]string
	HistorySize           int
	PowerBudget           int64
	EventBuffer           int
	LogEventsPerSecond    float64
	LogEventsBurst        int
	StoreEvents           bool
	Hostname              string
}

func (sc *SchedulerConfiguration) String() string {
	return fmt.Sprintf("SchedulerConfiguration: DebugMode: %t, StepRate: %s, MaxActivationsPerStep: %d, "+
		"HandoffBuffer: %d, DefaultQueue: %s, Queues: %d, Nodes: %d, Algorithms: %v, HistorySize: %d, "+
		"PowerBudget: %d, EventBuffer: %d, LogEventsPerSecond: %g, LogEventsBurst: %d, StoreEvents: %t",
		sc.DebugMode, sc.StepRate, sc.MaxActivationsPerStep, sc.HandoffBuffer, sc.DefaultQueue,
		len(sc.Queues), len(sc.Nodes), sc.Algorithms, sc.HistorySize, sc.PowerBudget, sc.EventBuffer,
		sc.LogEventsPerSecond, sc.LogEventsBurst, sc.StoreEvents)
}

func (sc *SchedulerConfiguration) setDefaults() {
	if sc.StepRate <= 0 {
		sc.StepRate = DefaultStepRate
	}
	if sc.MaxActivationsPerStep <= 0 {
		sc.MaxActivationsPerStep = DefaultMaxActivationsPerStep
	}
	if sc.HandoffBuffer <= 0 {
		sc.HandoffBuffer = DefaultHandoffBuffer
	}
	if sc.DefaultQueue == "" {
		sc.DefaultQueue = DefaultQueueName
	}
	if len(sc.Queues) == 0 {
		sc.Queues = []QueueConfiguration{{Name: sc.DefaultQueue}}
	}
	if sc.HistorySize <= 0 {
		sc.HistorySize = DefaultHistorySize
	}
	if sc.LogEventsPerSecond <= 0 {
		sc.LogEventsPerSecond = DefaultLogEventsPerSecond
	}
	if sc.LogEventsBurst <= 0 {
		sc.LogEventsBurst = DefaultLogEventsBurst
	}
	if sc.Hostname == "" {
		sc.Hostname, _ = os.Hostname()
	}
}

type submitRequest struct {
	request    control.SessionRequest
	responseCh chan submitResponse
}

type submitResponse struct {
	id  domain.SessionID
	err error
}

type cancelRequest struct {
	id         domain.SessionID
	responseCh chan error
}

// loopRequest runs fn on the scheduling loop and closes done afterwards.
type loopRequest struct {
	fn   func()
	done chan struct{}
}

// Framework is the scheduler: it owns the queues, the node pool, the allocation
// module and every session, and mutates them only from its loop goroutine.
// Exported methods may be called from any goroutine and block until the loop has
// handled them.
type Framework struct {
	config      SchedulerConfiguration
	eb          *EventBase
	asyncRunner async.Runner
	queues      *queue.Set
	nodes       *clusterState
	alg         alg.Module
	algName     string
	journal     *store.Journal
	emitter     *events.Emitter
	logListener *events.LogListener
	timers      *sessionTimers
	stat        stats.StatsReceiver

	sessions        map[domain.SessionID]*domain.Session
	history         *lru.Cache
	nextID          domain.SessionID
	sched           *domain.Session // sentinel activated for scheduling passes
	schedulePending bool
	power           *allocator.Budget
	sessionPower    map[domain.SessionID]*allocator.Grant

	submitCh   chan submitRequest
	cancelCh   chan cancelRequest
	callCh     chan loopRequest
	stepTicker *time.Ticker
	startOnce  sync.Once
	done       chan struct{}
}

var _ control.Backend = (*Framework)(nil)

// NewFramework builds a scheduler. Components are the allocation algorithms to
// choose from, alg.DefaultComponents() when nil.
func NewFramework(
	config SchedulerConfiguration,
	st store.Store,
	components []alg.Component,
	stat stats.StatsReceiver,
) (*Framework, error) {
	config.setDefaults()
	if components == nil {
		components = alg.DefaultComponents()
	}

	nodes, err := newClusterState(config.Nodes, stat)
	if err != nil {
		return nil, err
	}
	qs := queue.NewSet()
	for _, qc := range config.Queues {
		q, err := queue.New(qc.Name, qc.Priority, qc.Config)
		if err != nil {
			return nil, errors.Wrapf(err, "queue %s", qc.Name)
		}
		if err := qs.Add(q); err != nil {
			return nil, err
		}
	}
	module, algName, err := alg.Select(components, config.Algorithms, alg.Config{Params: config.AlgorithmParams})
	if err != nil {
		return nil, err
	}
	power, err := allocator.NewBudget(config.PowerBudget)
	if err != nil {
		return nil, domain.BadParameterf("power budget: %v", err)
	}
	history, err := lru.New(config.HistorySize)
	if err != nil {
		return nil, err
	}

	f := &Framework{
		config:       config,
		eb:           NewEventBase(states.NewRegistry(), config.HandoffBuffer, config.MaxActivationsPerStep, stat),
		asyncRunner:  async.NewRunner(),
		queues:       qs,
		nodes:        nodes,
		alg:          module,
		algName:      algName,
		emitter:      events.NewEmitter(config.EventBuffer, stat),
		logListener:  events.NewLogListener(config.LogEventsPerSecond, config.LogEventsBurst),
		stat:         stat,
		sessions:     map[domain.SessionID]*domain.Session{},
		history:      history,
		sched:        &domain.Session{ID: 0, State: domain.StateSchedule},
		power:        power,
		sessionPower: map[domain.SessionID]*allocator.Grant{},
		submitCh:     make(chan submitRequest, DefaultRequestBuffer),
		cancelCh:     make(chan cancelRequest, DefaultRequestBuffer),
		callCh:       make(chan loopRequest, DefaultRequestBuffer),
		stepTicker:   time.NewTicker(config.StepRate),
		done:         make(chan struct{}),
	}
	f.journal = store.NewJournal(st, &f.asyncRunner, stat)
	f.timers = newSessionTimers(f.eb)
	f.emitter.Subscribe(f.logListener)
	if config.StoreEvents {
		f.emitter.Subscribe(events.NewStoreListener(f.journal))
	}
	f.registerHandlers()

	log.WithFields(
		log.Fields{
			"algorithm": algName,
			"queues":    len(config.Queues),
			"nodes":     nodes.TotalNodes(),
		}).Info("Created scheduler")
	log.Info(config.String())
	return f, nil
}

// Start runs the scheduling loop until ctx is done. Does nothing in DebugMode.
func (f *Framework) Start(ctx context.Context) {
	if f.config.DebugMode {
		return
	}
	f.startOnce.Do(func() {
		go f.loop(ctx)
	})
}

// Close releases the framework's resources. The loop must already be stopped.
func (f *Framework) Close() {
	f.stepTicker.Stop()
	f.emitter.Close()
	f.alg.Finalize()
}

// Done is closed once a loop started by Start has returned.
func (f *Framework) Done() <-chan struct{} {
	return f.done
}

// Algorithm is the name of the allocation component in use.
func (f *Framework) Algorithm() string {
	return f.algName
}

func (f *Framework) EventBase() *EventBase {
	return f.eb
}

func (f *Framework) loop(ctx context.Context) {
	defer close(f.done)
	for {
		f.step()

		// Wait until StepRate has elapsed or something is pending. Anything pulled off
		// a channel to detect it is put back asynchronously; it's drained by the next step().
		select {
		case msg := <-f.submitCh:
			go func() {
				f.submitCh <- msg
			}()
		case msg := <-f.cancelCh:
			go func() {
				f.cancelCh <- msg
			}()
		case msg := <-f.callCh:
			go func() {
				f.callCh <- msg
			}()
		case msg := <-f.eb.handoffCh:
			go func() {
				f.eb.handoffCh <- msg
			}()
		case <-f.asyncRunner.Ready():
		case <-f.stepTicker.C:
		case <-ctx.Done():
			log.Info("Scheduling loop exiting")
			return
		}
	}
}

// run one loop iteration
func (f *Framework) step() {
	defer f.stat.Latency(stats.SchedStepLatency_ms).Time().Stop()

	// requests received since the last step, then activations handed off by timers
	f.addSessions()
	f.cancelSessions()
	f.runCalls()
	f.eb.drainHandoffs()

	procMessagesLatency := f.stat.Latency(stats.SchedProcessMessagesLatency_ms).Time()
	f.asyncRunner.ProcessMessages()
	procMessagesLatency.Stop()

	f.eb.Dispatch()
	f.reap()
	f.updateStats()
}

func (f *Framework) addSessions() {
	for {
		select {
		case req := <-f.submitCh:
			id := f.newSession(req.request)
			req.responseCh <- submitResponse{id: id}
		default:
			return
		}
	}
}

func (f *Framework) cancelSessions() {
	for {
		select {
		case req := <-f.cancelCh:
			req.responseCh <- f.cancel(req.id)
		default:
			return
		}
	}
}

func (f *Framework) runCalls() {
	for {
		select {
		case req := <-f.callCh:
			req.fn()
			close(req.done)
		default:
			return
		}
	}
}

// onLoop runs fn on the scheduling loop and waits for it.
func (f *Framework) onLoop(fn func()) error {
	req := loopRequest{fn: fn, done: make(chan struct{})}
	select {
	case f.callCh <- req:
	case <-f.done:
		return ErrClosed
	}
	select {
	case <-req.done:
		return nil
	case <-f.done:
		return ErrClosed
	}
}

func (f *Framework) reap() {
	for id, s := range f.sessions {
		if !s.Reapable() {
			continue
		}
		delete(f.sessions, id)
		f.history.Add(id, s.Status())
		f.stat.Counter(stats.SchedReapedCounter).Inc(1)
		log.WithFields(
			log.Fields{
				"sessionID": id,
				"state":     s.State,
			}).Debug("Reaped session")
	}
}

func (f *Framework) updateStats() {
	queued := 0
	for _, s := range f.sessions {
		if s.State == domain.StateQueued {
			queued++
		}
	}
	f.stat.Gauge(stats.SchedSessionsGauge).Update(int64(len(f.sessions)))
	f.stat.Gauge(stats.SchedQueuedSessionsGauge).Update(int64(queued))
	f.stat.Gauge(stats.SchedInProgressAsyncGauge).Update(int64(f.asyncRunner.NumRunning()))
	for _, q := range f.queues.List() {
		f.stat.Scope("queue", q.Name()).Gauge(stats.QueuePendingGauge).Update(int64(q.Len()))
	}
	f.nodes.updateStats()
}

// validateRequest checks a request before any session exists for it. It may read
// the request's nodefile, so it must not run on the loop.
func validateRequest(sr *control.SessionRequest) error {
	if sr.Request == nil {
		return domain.BadParameterf("missing allocation request")
	}
	if err := sr.Requestor.Validate(); err != nil {
		return err
	}
	if !sr.Interactive && sr.Job == "" {
		return domain.BadParameterf("batch session requires a job")
	}
	if err := sr.Request.LoadNodefile(); err != nil {
		return err
	}
	sr.Request.Normalize()
	return sr.Request.Validate()
}

// Submit validates a request and creates a session for it. The session starts in
// INIT and is admitted to a queue by the loop.
func (f *Framework) Submit(sr control.SessionRequest) (domain.SessionID, error) {
	defer f.stat.Latency(stats.SchedSubmitLatency_ms).Time().Stop()
	if err := validateRequest(&sr); err != nil {
		f.stat.Counter(stats.SchedSubmitRejectedCounter).Inc(1)
		log.WithFields(
			log.Fields{
				"requestor": sr.Requestor.Endpoint,
				"err":       err,
			}).Info("Rejected session request")
		log.Debugf("Rejected request: %s", spew.Sdump(sr))
		return 0, err
	}

	req := submitRequest{request: sr, responseCh: make(chan submitResponse, 1)}
	select {
	case f.submitCh <- req:
	case <-f.done:
		return 0, ErrClosed
	}
	select {
	case rsp := <-req.responseCh:
		return rsp.id, rsp.err
	case <-f.done:
		return 0, ErrClosed
	}
}

func (f *Framework) generateSessionID() domain.SessionID {
	for {
		f.nextID++
		if f.nextID == f.sched.ID {
			continue
		}
		if _, ok := f.sessions[f.nextID]; !ok {
			return f.nextID
		}
	}
}

// newSession runs on the loop with an already validated request.
func (f *Framework) newSession(sr control.SessionRequest) domain.SessionID {
	s := domain.NewSession(f.generateSessionID(), sr.Request, sr.Requestor, sr.Interactive, time.Now())
	s.Job = sr.Job
	f.sessions[s.ID] = s
	f.stat.Counter(stats.SchedSubmitCounter).Inc(1)
	log.WithFields(
		log.Fields{
			"sessionID":   s.ID,
			"requestor":   s.Requestor.Endpoint,
			"interactive": s.Interactive,
			"minNodes":    s.Request.MinNodes,
			"priority":    s.Request.Priority,
		}).Info("New session")
	f.eb.Activate(s, domain.StateInit)
	return s.ID
}

// Cancel ends a session that isn't terminal yet.
func (f *Framework) Cancel(id domain.SessionID) error {
	req := cancelRequest{id: id, responseCh: make(chan error, 1)}
	select {
	case f.cancelCh <- req:
	case <-f.done:
		return ErrClosed
	}
	select {
	case err := <-req.responseCh:
		return err
	case <-f.done:
		return ErrClosed
	}
}

func (f *Framework) cancel(id domain.SessionID) error {
	s, err := f.liveSession(id)
	if err != nil {
		return err
	}
	f.eb.Activate(s, domain.StateCanceled)
	return nil
}

// liveSession finds a session that isn't terminal.
func (f *Framework) liveSession(id domain.SessionID) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "session %d", id)
	}
	if s.State.IsTerminal() {
		return nil, domain.BadParameterf("session %d is already %s", id, s.State)
	}
	return s, nil
}

// allocatedSession finds a session that holds nodes.
func (f *Framework) allocatedSession(id domain.SessionID) (*domain.Session, error) {
	s, err := f.liveSession(id)
	if err != nil {
		return nil, err
	}
	if s.State != domain.StateAllocd && s.State != domain.StateActive {
		return nil, domain.BadParameterf("session %d is %s, not allocated", id, s.State)
	}
	return s, nil
}

// Release gives back an allocated session's nodes and terminates it.
func (f *Framework) Release(id domain.SessionID) error {
	var err error
	if callErr := f.onLoop(func() { err = f.release(id) }); callErr != nil {
		return callErr
	}
	return err
}

func (f *Framework) release(id domain.SessionID) error {
	s, err := f.allocatedSession(id)
	if err != nil {
		return err
	}
	f.eb.Activate(s, domain.StateTerminated)
	return nil
}

// StepStarted records a step on some of a session's nodes, all of them when nodes
// is empty.
func (f *Framework) StepStarted(id domain.SessionID, job string, nodes []string) (uint32, error) {
	var step uint32
	var err error
	if callErr := f.onLoop(func() { step, err = f.stepStarted(id, job, nodes) }); callErr != nil {
		return 0, callErr
	}
	return step, err
}

func (f *Framework) stepStarted(id domain.SessionID, job string, nodes []string) (uint32, error) {
	s, err := f.allocatedSession(id)
	if err != nil {
		return 0, err
	}
	if len(nodes) == 0 {
		nodes = s.Nodes
	}
	for _, n := range nodes {
		if !stringInSlice(n, s.Nodes) {
			return 0, domain.BadParameterf("node %s is not allocated to session %d", n, id)
		}
	}
	step := s.AddStep(job, nil, nodes)
	f.eb.Activate(s, domain.StateActive)
	return step.ID, nil
}

// StepCompleted reaps a step. A batch session terminates with its last step.
func (f *Framework) StepCompleted(id domain.SessionID, step uint32) error {
	var err error
	if callErr := f.onLoop(func() { err = f.stepCompleted(id, step) }); callErr != nil {
		return callErr
	}
	return err
}

func (f *Framework) stepCompleted(id domain.SessionID, step uint32) error {
	s, err := f.liveSession(id)
	if err != nil {
		return err
	}
	if !s.RemoveStep(step) {
		return errors.Wrapf(domain.ErrNotFound, "session %d step %d", id, step)
	}
	if !s.Interactive && len(s.Steps) == 0 {
		f.eb.Activate(s, domain.StateTerminated)
	}
	return nil
}

// Status looks in live sessions, then recently reaped ones, then the store.
func (f *Framework) Status(id domain.SessionID) (domain.SessionStatus, error) {
	var st domain.SessionStatus
	var found bool
	if err := f.onLoop(func() { st, found = f.status(id) }); err != nil {
		return st, err
	}
	if found {
		return st, nil
	}
	return f.storedStatus(id)
}

// storedStatus reads the latest journaled state of a session. It blocks on the
// store and must not run on the loop.
func (f *Framework) storedStatus(id domain.SessionID) (domain.SessionStatus, error) {
	records, err := f.journal.Fetch(store.CategorySession, sessionKey(id))
	if err != nil {
		return domain.SessionStatus{}, err
	}
	if len(records) == 0 {
		return domain.SessionStatus{}, errors.Wrapf(domain.ErrNotFound, "session %d", id)
	}
	// Journal writes run concurrently, so commit order isn't transition order.
	latest := records[0]
	for _, rec := range records[1:] {
		if !rec.Time.Before(latest.Time) {
			latest = rec
		}
	}
	return statusFromRecord(id, latest), nil
}

func (f *Framework) status(id domain.SessionID) (domain.SessionStatus, bool) {
	if s, ok := f.sessions[id]; ok {
		return s.Status(), true
	}
	if v, ok := f.history.Get(id); ok {
		return v.(domain.SessionStatus), true
	}
	return domain.SessionStatus{}, false
}

func (f *Framework) AddQueue(name string, priority int, cfg queue.Config) error {
	var err error
	if callErr := f.onLoop(func() { err = f.addQueue(name, priority, cfg) }); callErr != nil {
		return callErr
	}
	return err
}

func (f *Framework) addQueue(name string, priority int, cfg queue.Config) error {
	q, err := queue.New(name, priority, cfg)
	if err != nil {
		return err
	}
	if err := f.queues.Add(q); err != nil {
		return err
	}
	log.WithFields(
		log.Fields{
			"queue":    name,
			"priority": priority,
		}).Info("Added queue")
	return nil
}

// RemoveQueue deletes a queue, moving its sessions to migrateTo if given. Queued
// sessions that can't be moved are rejected; allocated ones keep running.
func (f *Framework) RemoveQueue(name, migrateTo string) (int, error) {
	var n int
	var err error
	if callErr := f.onLoop(func() { n, err = f.removeQueue(name, migrateTo) }); callErr != nil {
		return 0, callErr
	}
	return n, err
}

func (f *Framework) removeQueue(name, migrateTo string) (int, error) {
	orphans, err := f.queues.Remove(name, migrateTo)
	if err != nil {
		return 0, err
	}
	for _, s := range orphans {
		if s.State != domain.StateQueued {
			continue
		}
		f.timers.stop(s, queueTimer)
		s.Err = fmt.Sprintf("queue %s removed", name)
		f.eb.Activate(s, domain.StateRejected)
	}
	f.stat.Scope("queue", name).Remove(stats.QueuePendingGauge)
	log.WithFields(
		log.Fields{
			"queue":     name,
			"migrateTo": migrateTo,
			"orphaned":  len(orphans),
		}).Info("Removed queue")
	if migrateTo != "" {
		f.requestSchedule()
	}
	return len(orphans), nil
}

func (f *Framework) RebinQueue(name string, power, nodes queue.BinRanges) error {
	var err error
	if callErr := f.onLoop(func() { err = f.rebinQueue(name, power, nodes) }); callErr != nil {
		return callErr
	}
	return err
}

func (f *Framework) rebinQueue(name string, power, nodes queue.BinRanges) error {
	q := f.queues.Get(name)
	if q == nil {
		return errors.Wrapf(domain.ErrNotFound, "queue %s", name)
	}
	return q.ReconfigureBins(power, nodes)
}

func (f *Framework) Queues() []queue.Info {
	var infos []queue.Info
	if err := f.onLoop(func() { infos = f.queueInfos() }); err != nil {
		return nil
	}
	return infos
}

func (f *Framework) queueInfos() []queue.Info {
	var infos []queue.Info
	for _, q := range f.queues.List() {
		infos = append(infos, q.Info())
	}
	return infos
}

// NodeUpdate adds a node or changes its state. Sessions holding a node that went
// down are ended with an error.
func (f *Framework) NodeUpdate(u control.NodeUpdate) error {
	if u.Name == "" {
		return domain.BadParameterf("missing node name")
	}
	for rt := range u.Resources {
		if !rt.Valid() {
			return domain.BadParameterf("node resource %q", rt)
		}
	}
	return f.onLoop(func() { f.nodeUpdate(u) })
}

func (f *Framework) nodeUpdate(u control.NodeUpdate) {
	grew, lost := f.nodes.update(u)
	for _, id := range lost {
		s, ok := f.sessions[id]
		if !ok || s.State.IsTerminal() {
			continue
		}
		s.Err = fmt.Sprintf("node %s went down", u.Name)
		f.emitter.Emit(f.newEvent(events.TypeException, events.ClassHardware, events.SeverityWarning, u.Name,
			s.Err, map[string]string{"SESSION": sessionKey(s.ID)}))
		f.eb.Activate(s, domain.StateNodeFailed)
	}
	if grew {
		f.requestSchedule()
	}
}

// requestSchedule activates a scheduling pass unless one is already pending.
func (f *Framework) requestSchedule() {
	if f.schedulePending {
		return
	}
	f.schedulePending = f.eb.Activate(f.sched, domain.StateSchedule)
}

func (f *Framework) availablePower() int64 {
	return f.power.Available()
}

// reservePower holds watts for a session. Candidates are only picked when their
// power fits, so a failure here means the queue's accounting is off.
func (f *Framework) reservePower(id domain.SessionID, watts int64) {
	g, err := f.power.Reserve(watts)
	if err != nil {
		log.WithFields(
			log.Fields{
				"sessionID": id,
				"watts":     watts,
				"err":       err,
			}).Error("Power budget overcommitted")
		return
	}
	f.sessionPower[id] = g
}

func (f *Framework) releasePower(id domain.SessionID) {
	f.sessionPower[id].Release()
	delete(f.sessionPower, id)
}

func sessionKey(id domain.SessionID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// journalSession records the session's current state in the background.
func (f *Framework) journalSession(s *domain.Session) {
	rec := store.Record{
		Key:  sessionKey(s.ID),
		Time: time.Now(),
		Fields: map[string]string{
			"state":        s.State.String(),
			"queue":        s.Queue,
			"interactive":  strconv.FormatBool(s.Interactive),
			"allocationId": s.AllocationID,
			"nodes":        strings.Join(s.Nodes, ","),
			"err":          s.Err,
			"submitTime":   s.SubmitTime.Format(time.RFC3339Nano),
		},
	}
	id, state := s.ID, s.State
	f.journal.Record(store.Unit{
		Name:     "session-" + strings.ToLower(state.String()),
		Category: store.CategorySession,
		Records:  []store.Record{rec},
	}, func(err error) {
		if err != nil {
			log.WithFields(
				log.Fields{
					"sessionID": id,
					"state":     state,
					"err":       err,
				}).Error("Failed to journal session")
		}
	})
}

func statusFromRecord(id domain.SessionID, rec store.Record) domain.SessionStatus {
	st := domain.SessionStatus{
		ID:           id,
		State:        rec.Fields["state"],
		Queue:        rec.Fields["queue"],
		AllocationID: rec.Fields["allocationId"],
		Nodes:        domain.SplitList(rec.Fields["nodes"]),
		Err:          rec.Fields["err"],
	}
	st.Interactive, _ = strconv.ParseBool(rec.Fields["interactive"])
	st.SubmitTime, _ = time.Parse(time.RFC3339Nano, rec.Fields["submitTime"])
	return st
}

func (f *Framework) newEvent(t events.Type, c events.Class, sev events.Severity, locstring, msg string,
	attrs map[string]string) events.Event {
	return events.Event{
		Type:       t,
		Class:      c,
		Severity:   sev,
		Location:   events.Location{Hostname: f.config.Hostname, Locstring: locstring},
		Timestamp:  time.Now(),
		Message:    msg,
		Attributes: attrs,
	}
}

// emitTransition publishes a session's move to its current state.
func (f *Framework) emitTransition(s *domain.Session) {
	f.emitter.Emit(f.newEvent(events.TypeTransition, events.ClassSoftware, events.SeverityInfo, s.Queue,
		fmt.Sprintf("session %d %s", s.ID, s.State),
		map[string]string{"SESSION": sessionKey(s.ID), "STATE": s.State.String()}))
}

func init() {
	if loglevel := os.Getenv("SCD_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	} else {
		// setting Error level to keep test output short
		log.SetLevel(log.ErrorLevel)
	}
}

func stringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}
