package store

import (
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/scd/async"
	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/domain"
)

func makeJournal(s Store) (*Journal, *async.Runner, stats.StatsRegistry) {
	statsRegistry := stats.NewFinagleStatsRegistry()
	stat, _ := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return statsRegistry }, 0)
	runner := async.NewRunner()
	j := NewJournal(s, &runner, stat)
	j.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}
	return j, &runner, statsRegistry
}

func testUnit() Unit {
	return Unit{Name: "session 1", Category: CategorySession, Records: []Record{rec("1", "INIT", 1), rec("1", "QUEUED", 2)}}
}

// drain runs the runner's callbacks until none are outstanding.
func drain(runner *async.Runner) {
	for runner.NumRunning() > 0 {
		<-runner.Ready()
		runner.ProcessMessages()
	}
}

func Test_Journal_Commits(t *testing.T) {
	s, err := NewMemStore()
	require.NoError(t, err)
	j, runner, reg := makeJournal(s)

	var cbErr error
	called := false
	j.Record(testUnit(), func(err error) { called, cbErr = true, err })
	drain(runner)
	require.True(t, called)
	require.NoError(t, cbErr)

	got, err := j.Fetch(CategorySession, "1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	var fetched []Record
	j.FetchAsync(CategorySession, "1", func(recs []Record, err error) { fetched = recs })
	drain(runner)
	assert.Len(t, fetched, 2)

	stats.VerifyStats("commit", reg, t, map[string]stats.Rule{
		stats.StoreCommitCounter:              {Checker: stats.Int64EqTest, Value: 1},
		stats.StoreRecordLatency_ms + ".count": {Checker: stats.Int64EqTest, Value: 1},
		stats.StoreRollbackCounter:            {Checker: stats.DoesNotExistTest},
	})
}

func Test_Journal_RollsBackPartialWrite(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	s := NewMockStore(mockCtrl)
	j, runner, reg := makeJournal(s)
	unit := testUnit()
	gomock.InOrder(
		s.EXPECT().Open(unit.Name, gomock.Any()).Return(Handle(7), nil),
		s.EXPECT().Store(Handle(7), CategorySession, unit.Records[0]).Return(nil),
		s.EXPECT().Store(Handle(7), CategorySession, unit.Records[1]).Return(errors.New("disk full")),
		s.EXPECT().Rollback(Handle(7)).Return(nil),
		s.EXPECT().Close(Handle(7)).Return(nil),
	)

	var cbErr error
	j.Record(unit, func(err error) { cbErr = err })
	drain(runner)
	assert.True(t, domain.IsTransport(cbErr), "got %v", cbErr)

	stats.VerifyStats("rollback", reg, t, map[string]stats.Rule{
		stats.StoreRollbackCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.StoreFailureCounter:  {Checker: stats.Int64EqTest, Value: 1},
		stats.StoreCommitCounter:   {Checker: stats.DoesNotExistTest},
	})
}

func Test_Journal_CommitFailureRollsBack(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	s := NewMockStore(mockCtrl)
	j, _, _ := makeJournal(s)
	s.EXPECT().Open(gomock.Any(), gomock.Any()).Return(Handle(1), nil)
	s.EXPECT().Store(Handle(1), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.EXPECT().Commit(Handle(1)).Return(domain.ErrTransport)
	s.EXPECT().Rollback(Handle(1)).Return(nil)
	s.EXPECT().Close(Handle(1)).Return(nil)

	err := j.Write(testUnit())
	assert.True(t, domain.IsTransport(err))
}

func Test_Journal_RetriesOpen(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	s := NewMockStore(mockCtrl)
	j, _, _ := makeJournal(s)
	unit := Unit{Name: "empty", Category: CategorySession}
	gomock.InOrder(
		s.EXPECT().Open("empty", gomock.Any()).Return(Handle(0), errors.New("connection refused")),
		s.EXPECT().Open("empty", gomock.Any()).Return(Handle(3), nil),
		s.EXPECT().Commit(Handle(3)).Return(nil),
		s.EXPECT().Close(Handle(3)).Return(nil),
	)
	require.NoError(t, j.Write(unit))

	s.EXPECT().Open("empty", gomock.Any()).Return(Handle(0), errors.New("connection refused")).Times(3)
	err := j.Write(unit)
	assert.True(t, domain.IsTransport(err), "gives up after the retry budget")
}
