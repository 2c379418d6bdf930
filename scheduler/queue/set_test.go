package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/scd/scheduler/domain"
)

func newQueue(t *testing.T, name string, priority int, max int) *Queue {
	q, err := New(name, priority, Config{MaxSessions: max, NodeBins: mustRanges(t, 0, 4)})
	require.NoError(t, err)
	return q
}

func TestSetOrdersByPriority(t *testing.T) {
	qs := NewSet()
	require.NoError(t, qs.Add(newQueue(t, "batch", 1, 0)))
	require.NoError(t, qs.Add(newQueue(t, "debug", 10, 0)))
	require.NoError(t, qs.Add(newQueue(t, "alpha", 1, 0)))
	assert.True(t, domain.IsBadParameter(qs.Add(newQueue(t, "batch", 3, 0))))

	var names []string
	for _, q := range qs.List() {
		names = append(names, q.Name())
	}
	assert.Equal(t, []string{"debug", "alpha", "batch"}, names)
}

func TestSetRemoveMigrates(t *testing.T) {
	qs := NewSet()
	src := newQueue(t, "old", 0, 0)
	dst := newQueue(t, "new", 0, 1)
	require.NoError(t, qs.Add(src))
	require.NoError(t, qs.Add(dst))
	a, b := makeSession(1, 1, 0), makeSession(2, 5, 0)
	require.NoError(t, src.Admit(a))
	require.NoError(t, src.Admit(b))

	orphans, err := qs.Remove("old", "new")
	require.NoError(t, err)
	assert.Nil(t, qs.Get("old"))
	assert.Equal(t, 0, src.Len())
	assert.Equal(t, []domain.SessionID{1}, ids(dst.Sessions()), "target holds only one")
	assert.Equal(t, []*domain.Session{b}, orphans)
	assert.Equal(t, "new", a.Queue)
	assert.Empty(t, b.BinRefs)
	assert.Equal(t, 1, qs.Pending())
}

func TestSetRemoveErrors(t *testing.T) {
	qs := NewSet()
	require.NoError(t, qs.Add(newQueue(t, "q", 0, 0)))

	_, err := qs.Remove("missing", "")
	assert.True(t, domain.IsNotFound(err))
	_, err = qs.Remove("q", "q")
	assert.True(t, domain.IsBadParameter(err))
	_, err = qs.Remove("q", "nowhere")
	assert.True(t, domain.IsNotFound(err))
	assert.NotNil(t, qs.Get("q"), "failed removal keeps the queue")

	orphans, err := qs.Remove("q", "")
	require.NoError(t, err)
	assert.Empty(t, orphans)
	assert.Empty(t, qs.List())
}
