package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveRelease(t *testing.T) {
	_, err := NewBudget(-1)
	assert.Error(t, err, "negative capacity")

	b, err := NewBudget(1000)
	require.NoError(t, err)

	g1, err := b.Reserve(750)
	require.NoError(t, err)
	assert.Equal(t, int64(250), b.Available())

	_, err = b.Reserve(251)
	assert.Error(t, err, "beyond capacity")
	_, err = b.Reserve(-1)
	assert.Error(t, err)

	g2, err := b.Reserve(250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Available())

	g1.Release()
	assert.Equal(t, int64(250), b.Allocated())
	assert.Equal(t, int64(0), g1.Size())

	// double release does nothing
	g1.Release()
	assert.Equal(t, int64(250), b.Allocated())

	g2.Release()
	var nilGrant *Grant
	nilGrant.Release()
	assert.Equal(t, int64(1000), b.Available())
}

func TestUnlimited(t *testing.T) {
	b, err := NewBudget(0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), b.Available())

	g, err := b.Reserve(1 << 40)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), b.Available())
	assert.Equal(t, int64(1<<40), g.Size())
	g.Release()
	assert.Equal(t, int64(0), b.Allocated())
}
