package server

import (
	"context"
	"testing"
	"time"

	"github.com/luci/go-render/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/alg"
	"github.com/twitter/scd/scheduler/control"
	"github.com/twitter/scd/scheduler/domain"
	"github.com/twitter/scd/scheduler/queue"
	"github.com/twitter/scd/scheduler/store"
)

// objects needed to initialize a framework
type schedulerDeps struct {
	config        SchedulerConfiguration
	store         store.Store
	components    []alg.Component
	statsRegistry stats.StatsRegistry
}

func mustRanges(t *testing.T, bounds ...int64) queue.BinRanges {
	r, err := queue.NewBinRanges(bounds...)
	require.NoError(t, err)
	return r
}

// returns default framework deps with an in memory store.
// The default cluster has 5 nodes with 4 slots each, and one queue named "default".
func getDefaultSchedDeps(t *testing.T) *schedulerDeps {
	st, err := store.NewMemStore()
	require.NoError(t, err)
	return &schedulerDeps{
		config: SchedulerConfiguration{
			DebugMode: true,
			Nodes:     []NodeConfiguration{{Prefix: "node", Count: 5, Slots: 4}},
			Queues: []QueueConfiguration{{
				Name: "default",
				Config: queue.Config{
					PowerBins:    mustRanges(t, 0, 1000, 5000),
					NodeBins:     mustRanges(t, 0, 4, 8, 16),
					PerNodeWatts: 250,
				},
			}},
			Hostname: "head",
		},
		store:         st,
		statsRegistry: stats.NewFinagleStatsRegistry(),
	}
}

func makeFrameworkDeps(t *testing.T, deps *schedulerDeps) *Framework {
	statsReceiver, _ := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return deps.statsRegistry }, 0)
	f, err := NewFramework(deps.config, deps.store, deps.components, statsReceiver)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func makeDefaultFramework(t *testing.T) *Framework {
	return makeFrameworkDeps(t, getDefaultSchedDeps(t))
}

func interactiveRequest(minNodes uint64, priority int32) control.SessionRequest {
	return control.SessionRequest{
		Request:     &domain.AllocationRequest{MinNodes: minNodes, Priority: priority, Exclusive: true},
		Requestor:   domain.Requestor{UID: 1, Endpoint: "login1"},
		Interactive: true,
	}
}

func batchRequest(minNodes uint64, priority int32) control.SessionRequest {
	sr := interactiveRequest(minNodes, priority)
	sr.Interactive = false
	sr.Job = "hostname"
	return sr
}

// submit does what Submit does, on the test goroutine.
func submit(t *testing.T, f *Framework, sr control.SessionRequest) *domain.Session {
	require.NoError(t, validateRequest(&sr))
	id := f.newSession(sr)
	return f.sessions[id]
}

// drainJournal waits for every background store write to finish.
func drainJournal(f *Framework) {
	for f.asyncRunner.NumRunning() > 0 {
		<-f.asyncRunner.Ready()
		f.asyncRunner.ProcessMessages()
	}
}

func Test_Framework_Initialize(t *testing.T) {
	f := makeDefaultFramework(t)

	assert.Empty(t, f.sessions)
	assert.Equal(t, 5, f.nodes.TotalNodes())
	assert.Equal(t, []string{"node1", "node2", "node3", "node4", "node5"}, f.nodes.names)
	assert.Len(t, f.queues.List(), 1)
	assert.Equal(t, "firstfit", f.Algorithm())
	assert.Equal(t, 9, f.eb.Registry().Len())
}

func Test_Framework_BadConfig(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.Nodes = append(deps.config.Nodes, NodeConfiguration{Names: []string{"node1"}})
	statsReceiver := stats.NilStatsReceiver()
	_, err := NewFramework(deps.config, deps.store, nil, statsReceiver)
	assert.True(t, domain.IsBadParameter(err), render.Render(err))

	deps = getDefaultSchedDeps(t)
	deps.config.Algorithms = []string{"nosuchalg"}
	_, err = NewFramework(deps.config, deps.store, nil, statsReceiver)
	assert.Error(t, err)

	deps = getDefaultSchedDeps(t)
	deps.config.PowerBudget = -1
	_, err = NewFramework(deps.config, deps.store, nil, statsReceiver)
	assert.True(t, domain.IsBadParameter(err))
}

func Test_Framework_SubmitValidation(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	f := makeFrameworkDeps(t, deps)

	noRequest := interactiveRequest(1, 0)
	noRequest.Request = nil
	noEndpoint := interactiveRequest(1, 0)
	noEndpoint.Requestor.Endpoint = ""
	noJob := batchRequest(1, 0)
	noJob.Job = ""
	noNodes := interactiveRequest(0, 0)
	badNodefile := interactiveRequest(1, 0)
	badNodefile.Request.Nodefile = "/does/not/exist"

	for _, sr := range []control.SessionRequest{noRequest, noEndpoint, noJob, noNodes, badNodefile} {
		// Rejected before reaching the loop, which isn't running in DebugMode.
		_, err := f.Submit(sr)
		assert.True(t, domain.IsBadParameter(err), render.Render(sr))
	}
	assert.Empty(t, f.sessions)
	stats.VerifyStats("submit", deps.statsRegistry, t, map[string]stats.Rule{
		stats.SchedSubmitRejectedCounter: {Checker: stats.Int64EqTest, Value: 5},
	})
}

func Test_Framework_BatchLifecycle(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	f := makeFrameworkDeps(t, deps)

	s := submit(t, f, batchRequest(2, 0))
	f.step()
	require.Equal(t, domain.StateActive, s.State, s.String())
	assert.Equal(t, []string{"node1", "node2"}, s.Nodes)
	assert.NotEmpty(t, s.AllocationID)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "hostname", s.Steps[0].Job)
	assert.True(t, f.queues.Get("default").Contains(s.ID), "admitted sessions stay queued until they end")

	up, idle := f.nodes.counts()
	assert.Equal(t, 5, up)
	assert.Equal(t, 3, idle)

	require.NoError(t, f.stepCompleted(s.ID, s.Steps[0].ID))
	f.step()
	assert.Equal(t, domain.StateTerminated, s.State)
	assert.False(t, f.queues.Get("default").Contains(s.ID))
	_, idle = f.nodes.counts()
	assert.Equal(t, 5, idle)

	// Reaped into history.
	assert.NotContains(t, f.sessions, s.ID)
	st, found := f.status(s.ID)
	require.True(t, found)
	assert.Equal(t, "TERMINATED", st.State)
	assert.Equal(t, []string{"node1", "node2"}, st.Nodes)

	stats.VerifyStats("lifecycle", deps.statsRegistry, t, map[string]stats.Rule{
		stats.SchedSubmitCounter:     {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedQueuedCounter:     {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedAllocatedCounter:  {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedTerminatedCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedReapedCounter:     {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedSessionsGauge:     {Checker: stats.Int64EqTest, Value: 0},
		stats.SchedIdleNodesGauge:    {Checker: stats.Int64EqTest, Value: 5},

		"queue/default/" + stats.QueuePendingGauge:     {Checker: stats.Int64EqTest, Value: 0},
		stats.SchedAllocatedNodesHistogram + ".count": {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_Framework_InteractiveLifecycle(t *testing.T) {
	f := makeDefaultFramework(t)

	s := submit(t, f, interactiveRequest(3, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, s.State)
	assert.Empty(t, s.Steps)

	_, err := f.stepStarted(s.ID, "srun", []string{"node9"})
	assert.True(t, domain.IsBadParameter(err))
	step, err := f.stepStarted(s.ID, "srun", []string{"node2"})
	require.NoError(t, err)
	f.step()
	assert.Equal(t, domain.StateActive, s.State)

	// Interactive sessions outlive their steps.
	require.NoError(t, f.stepCompleted(s.ID, step))
	assert.True(t, domain.IsNotFound(f.stepCompleted(s.ID, step)))
	f.step()
	assert.Equal(t, domain.StateActive, s.State)

	require.NoError(t, f.release(s.ID))
	f.step()
	assert.Equal(t, domain.StateTerminated, s.State)
	assert.True(t, domain.IsNotFound(f.release(s.ID)))
}

func Test_Framework_ReleaseNeedsAllocation(t *testing.T) {
	f := makeDefaultFramework(t)
	s := submit(t, f, interactiveRequest(1, 0))
	assert.True(t, domain.IsBadParameter(f.release(s.ID)), "still INIT")
	_, err := f.stepStarted(s.ID, "srun", nil)
	assert.True(t, domain.IsBadParameter(err))
}

// A session canceled while allocated leaves both of its bins and the master list.
func Test_Framework_CancelAllocated(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	f := makeFrameworkDeps(t, deps)
	q := f.queues.Get("default")

	s := submit(t, f, interactiveRequest(4, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, s.State)
	nodeBin := q.BinIndex(domain.NodeDimension, 4)
	powerBin := q.BinIndex(domain.PowerDimension, 1000)
	assert.Contains(t, q.BinMembers(domain.NodeDimension, nodeBin), s.ID)
	assert.Contains(t, q.BinMembers(domain.PowerDimension, powerBin), s.ID)
	assert.Len(t, s.BinRefs, 2)

	require.NoError(t, f.cancel(s.ID))
	f.step()

	assert.Equal(t, domain.StateCanceled, s.State)
	assert.NotContains(t, q.BinMembers(domain.NodeDimension, nodeBin), s.ID)
	assert.NotContains(t, q.BinMembers(domain.PowerDimension, powerBin), s.ID)
	assert.False(t, q.Contains(s.ID))
	assert.Empty(t, s.BinRefs)
	_, idle := f.nodes.counts()
	assert.Equal(t, 5, idle)

	assert.True(t, domain.IsNotFound(f.cancel(s.ID)), "reaped")
	assert.True(t, domain.IsNotFound(f.cancel(99)))
	stats.VerifyStats("cancel", deps.statsRegistry, t, map[string]stats.Rule{
		stats.SchedCanceledCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_Framework_CancelQueued(t *testing.T) {
	f := makeDefaultFramework(t)
	big := submit(t, f, interactiveRequest(5, 0))
	waiting := submit(t, f, interactiveRequest(1, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, big.State)
	require.Equal(t, domain.StateQueued, waiting.State)

	require.NoError(t, f.cancel(waiting.ID))
	f.step()
	assert.Equal(t, domain.StateCanceled, waiting.State)
	assert.Empty(t, waiting.Nodes)
	assert.Equal(t, 1, f.queues.Get("default").Len())
}

func Test_Framework_PriorityWins(t *testing.T) {
	f := makeDefaultFramework(t)
	low := submit(t, f, interactiveRequest(3, 5))
	high := submit(t, f, interactiveRequest(3, 10))
	f.step()

	assert.Equal(t, domain.StateQueued, low.State)
	assert.Equal(t, domain.StateAllocd, high.State)

	// Freed nodes go to the waiting session in the same step.
	require.NoError(t, f.release(high.ID))
	f.step()
	assert.Equal(t, domain.StateTerminated, high.State)
	assert.Equal(t, domain.StateAllocd, low.State)
}

func Test_Framework_SmallerSessionBackfills(t *testing.T) {
	f := makeDefaultFramework(t)
	first := submit(t, f, interactiveRequest(4, 20))
	blocked := submit(t, f, interactiveRequest(3, 10))
	small := submit(t, f, interactiveRequest(1, 0))
	f.step()

	assert.Equal(t, domain.StateAllocd, first.State)
	assert.Equal(t, domain.StateQueued, blocked.State)
	assert.Equal(t, domain.StateAllocd, small.State)
	assert.Equal(t, []string{"node5"}, small.Nodes)
}

func Test_Framework_RejectedWhenQueueFull(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.Queues[0].MaxSessions = 1
	f := makeFrameworkDeps(t, deps)

	first := submit(t, f, interactiveRequest(1, 0))
	second := submit(t, f, interactiveRequest(1, 0))
	f.step()

	assert.Equal(t, domain.StateAllocd, first.State)
	assert.Equal(t, domain.StateTerminated, second.State)
	assert.Contains(t, second.Err, "queue full")
	stats.VerifyStats("rejected", deps.statsRegistry, t, map[string]stats.Rule{
		stats.SchedErrorCounter:      {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedTerminatedCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_Framework_FallsThroughQueues(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.Queues[0].MaxSessions = 1
	deps.config.Queues = append(deps.config.Queues, QueueConfiguration{Name: "overflow"})
	f := makeFrameworkDeps(t, deps)

	submit(t, f, interactiveRequest(1, 0))
	sr := interactiveRequest(1, 0)
	sr.Request.Queues = []string{"missing", "default", "overflow"}
	s := submit(t, f, sr)
	f.step()

	assert.Equal(t, "overflow", s.Queue)
	assert.Equal(t, domain.StateAllocd, s.State)
}

func Test_Framework_Unsatisfiable(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	f := makeFrameworkDeps(t, deps)

	s := submit(t, f, interactiveRequest(6, 0))
	f.step()
	assert.Equal(t, domain.StateTerminated, s.State)
	assert.Contains(t, s.Err, "unsatisfiable")
	stats.VerifyStats("unsatisfiable", deps.statsRegistry, t, map[string]stats.Rule{
		stats.SchedAllocFailureCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.SchedErrorCounter:        {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_Framework_PowerBudget(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.PowerBudget = 1000
	f := makeFrameworkDeps(t, deps)

	first := submit(t, f, interactiveRequest(2, 0))  // 500W
	second := submit(t, f, interactiveRequest(2, 0)) // 500W
	third := submit(t, f, interactiveRequest(1, 0))  // 250W, over budget
	f.step()

	assert.Equal(t, domain.StateAllocd, first.State)
	assert.Equal(t, domain.StateAllocd, second.State)
	assert.Equal(t, domain.StateQueued, third.State)
	assert.Equal(t, int64(0), f.availablePower())

	require.NoError(t, f.release(first.ID))
	f.step()
	assert.Equal(t, domain.StateAllocd, third.State)
	assert.Equal(t, int64(250), f.availablePower())
}

func Test_Framework_BeginTime(t *testing.T) {
	f := makeDefaultFramework(t)
	sr := interactiveRequest(1, 0)
	sr.Request.Begin = time.Now().Add(time.Hour)
	s := submit(t, f, sr)
	f.step()
	assert.Equal(t, domain.StateQueued, s.State)
	assert.True(t, f.timers.armed(s.ID, beginTimer))
}

func Test_Framework_BeginTimeSchedulesIdleCluster(t *testing.T) {
	f := makeDefaultFramework(t)
	sr := interactiveRequest(1, 0)
	sr.Request.Begin = time.Now().Add(50 * time.Millisecond)
	s := submit(t, f, sr)
	f.step()
	require.Equal(t, domain.StateQueued, s.State)

	// Nothing else happens on the cluster; only the begin timer can wake the pass.
	require.Eventually(t, func() bool {
		f.step()
		return s.State == domain.StateAllocd
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, f.timers.armed(s.ID, beginTimer))
	assert.Len(t, s.Nodes, 1)
}

func Test_Framework_WalltimeExceeded(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	f := makeFrameworkDeps(t, deps)

	sr := interactiveRequest(2, 0)
	sr.Request.Walltime = 10 * time.Millisecond
	s := submit(t, f, sr)
	f.step()
	require.Equal(t, domain.StateAllocd, s.State)
	assert.True(t, f.timers.armed(s.ID, walltimeTimer))

	require.Eventually(t, func() bool {
		f.step()
		return s.State == domain.StateTerminated
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "WALLTIME_EXCEEDED", s.Err)
	_, idle := f.nodes.counts()
	assert.Equal(t, 5, idle)
	assert.Eventually(t, func() bool { return s.Refs() == 0 }, time.Second, time.Millisecond)
	stats.VerifyStats("walltime", deps.statsRegistry, t, map[string]stats.Rule{
		stats.SchedErrorCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func Test_Framework_QueueTimeExceeded(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.Queues[0].QueueTimeLimit = 10 * time.Millisecond
	f := makeFrameworkDeps(t, deps)

	holder := submit(t, f, interactiveRequest(5, 0))
	waiting := submit(t, f, interactiveRequest(1, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, holder.State)
	require.Equal(t, domain.StateQueued, waiting.State)
	assert.False(t, f.timers.armed(holder.ID, queueTimer), "stopped on allocation")

	require.Eventually(t, func() bool {
		f.step()
		return waiting.State == domain.StateTerminated
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "QUEUE_TIME_EXCEEDED", waiting.Err)
	assert.Equal(t, domain.StateAllocd, holder.State)
}

func Test_Framework_IgnoresStaleTimer(t *testing.T) {
	f := makeDefaultFramework(t)
	s := submit(t, f, interactiveRequest(1, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, s.State)

	f.eb.Handoff(s, domain.StateQueueTimeExceeded)
	f.step()
	assert.Equal(t, domain.StateAllocd, s.State)
	assert.Empty(t, s.Err)
}

func Test_Framework_NodeDownEndsSession(t *testing.T) {
	f := makeDefaultFramework(t)
	s := submit(t, f, interactiveRequest(2, 0))
	f.step()
	require.Equal(t, []string{"node1", "node2"}, s.Nodes)

	f.nodeUpdate(control.NodeUpdate{Name: "node2", Up: false})
	f.step()
	assert.Equal(t, domain.StateTerminated, s.State)
	assert.Equal(t, "node node2 went down", s.Err)
	up, idle := f.nodes.counts()
	assert.Equal(t, 4, up)
	assert.Equal(t, 4, idle)

	// The session passes through NODE_FAILED, never the ERROR marker itself.
	drainJournal(f)
	recs, err := f.journal.Fetch(store.CategorySession, sessionKey(s.ID))
	require.NoError(t, err)
	var seen []string
	for _, r := range recs {
		seen = append(seen, r.Fields["state"])
	}
	assert.Contains(t, seen, "NODE_FAILED")
	assert.NotContains(t, seen, "ERROR")
}

func Test_Framework_NewNodeSchedules(t *testing.T) {
	f := makeDefaultFramework(t)
	holder := submit(t, f, interactiveRequest(5, 0))
	waiting := submit(t, f, interactiveRequest(1, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, holder.State)
	require.Equal(t, domain.StateQueued, waiting.State)

	f.nodeUpdate(control.NodeUpdate{Name: "node6", Up: true, Slots: 2})
	f.step()
	assert.Equal(t, domain.StateAllocd, waiting.State)
	assert.Equal(t, []string{"node6"}, waiting.Nodes)
}

func Test_Framework_RemoveQueue(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.Queues = append(deps.config.Queues, QueueConfiguration{Name: "low"}, QueueConfiguration{Name: "doomed"})
	f := makeFrameworkDeps(t, deps)

	holder := submit(t, f, interactiveRequest(5, 0))
	moved := interactiveRequest(1, 0)
	moved.Request.Queues = []string{"low"}
	movedSession := submit(t, f, moved)
	orphan := interactiveRequest(1, 0)
	orphan.Request.Queues = []string{"doomed"}
	orphanSession := submit(t, f, orphan)
	f.step()
	require.Equal(t, domain.StateAllocd, holder.State)

	n, err := f.removeQueue("low", "default")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "default", movedSession.Queue)

	n, err = f.removeQueue("doomed", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.step()
	assert.Equal(t, domain.StateTerminated, orphanSession.State)
	assert.Equal(t, "queue doomed removed", orphanSession.Err)
	assert.Equal(t, domain.StateQueued, movedSession.State)

	_, err = f.removeQueue("doomed", "")
	assert.True(t, domain.IsNotFound(err))
	assert.Len(t, f.queueInfos(), 1)

	stats.VerifyStats("queue gauges", deps.statsRegistry, t, map[string]stats.Rule{
		"queue/default/" + stats.QueuePendingGauge: {Checker: stats.Int64EqTest, Value: 2},
		"queue/doomed/" + stats.QueuePendingGauge:  {Checker: stats.DoesNotExistTest},
	})
}

func Test_Framework_QueueControl(t *testing.T) {
	f := makeDefaultFramework(t)
	require.NoError(t, f.addQueue("express", 10, queue.Config{}))
	assert.True(t, domain.IsBadParameter(f.addQueue("express", 0, queue.Config{})))

	infos := f.queueInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "express", infos[0].Name, "higher priority first")

	s := submit(t, f, interactiveRequest(2, 0))
	require.NoError(t, f.rebinQueue("default", mustRanges(t, 0), mustRanges(t, 0, 2)))
	f.step()
	assert.Equal(t, domain.StateAllocd, s.State)
	assert.Contains(t, f.queues.Get("default").BinMembers(domain.NodeDimension, 1), s.ID)
	assert.True(t, domain.IsNotFound(f.rebinQueue("nope", queue.BinRanges{}, queue.BinRanges{})))
}

func Test_Framework_StatusFromStore(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.HistorySize = 1
	f := makeFrameworkDeps(t, deps)

	first := submit(t, f, batchRequest(1, 0))
	second := submit(t, f, batchRequest(1, 0))
	f.step()
	require.NoError(t, f.stepCompleted(first.ID, first.Steps[0].ID))
	require.NoError(t, f.stepCompleted(second.ID, second.Steps[0].ID))
	f.step()
	drainJournal(f)

	// Only one of them still fits in the history.
	_, foundFirst := f.status(first.ID)
	_, foundSecond := f.status(second.ID)
	require.True(t, foundFirst != foundSecond)
	evicted := first.ID
	if foundFirst {
		evicted = second.ID
	}

	st, err := f.storedStatus(evicted)
	require.NoError(t, err)
	assert.Equal(t, "TERMINATED", st.State)
	assert.Len(t, st.Nodes, 1)
	assert.False(t, st.Interactive)

	_, err = f.storedStatus(42)
	assert.True(t, domain.IsNotFound(err))
}

func Test_Framework_StoresEvents(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.StoreEvents = true
	f := makeFrameworkDeps(t, deps)

	s := submit(t, f, interactiveRequest(1, 0))
	f.step()
	require.Equal(t, domain.StateAllocd, s.State)

	j := store.NewJournal(deps.store, &f.asyncRunner, stats.NilStatsReceiver())
	require.Eventually(t, func() bool {
		recs, err := j.Fetch(store.CategoryEvent, "head")
		return err == nil && len(recs) >= 2
	}, 5*time.Second, 5*time.Millisecond)
}

func Test_Framework_Loop(t *testing.T) {
	deps := getDefaultSchedDeps(t)
	deps.config.DebugMode = false
	deps.config.StepRate = 10 * time.Millisecond
	f := makeFrameworkDeps(t, deps)
	ctx, cancel := context.WithCancel(context.Background())
	f.Start(ctx)

	id, err := f.Submit(interactiveRequest(2, 0))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := f.Status(id)
		return err == nil && st.State == "ALLOCD"
	}, 5*time.Second, 5*time.Millisecond)

	step, err := f.StepStarted(id, "srun", nil)
	require.NoError(t, err)
	require.NoError(t, f.StepCompleted(id, step))
	require.NoError(t, f.NodeUpdate(control.NodeUpdate{Name: "node6", Up: true}))
	assert.Len(t, f.Queues(), 1)
	require.NoError(t, f.AddQueue("more", 1, queue.Config{}))
	require.NoError(t, f.RebinQueue("more", queue.BinRanges{}, mustRanges(t, 0, 8)))
	_, err = f.RemoveQueue("more", "")
	require.NoError(t, err)

	require.NoError(t, f.Cancel(id))
	require.Eventually(t, func() bool {
		st, err := f.Status(id)
		return err == nil && st.State == "CANCELED"
	}, 5*time.Second, 5*time.Millisecond)
	assert.Error(t, f.Release(id))

	cancel()
	<-f.done
	_, err = f.Submit(interactiveRequest(1, 0))
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, f.Cancel(id))
}
