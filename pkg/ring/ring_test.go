package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeRingRejectsBadCapacity(t *testing.T) {
	_, err := NewTimeRing(0)
	assert.Error(t, err)
	_, err = NewTimeRing(-1)
	assert.Error(t, err)
}

func TestPushAndRecent(t *testing.T) {
	r, err := NewTimeRing(3)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.Push(base)
	r.Push(base.Add(time.Second))
	r.Push(base.Add(2 * time.Second))

	assert.Equal(t, 3, r.Len())

	newest, ok := r.Recent(0)
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Second), newest)

	oldest, ok := r.Recent(2)
	require.True(t, ok)
	assert.Equal(t, base, oldest)

	_, ok = r.Recent(3)
	assert.False(t, ok)
}

func TestPushOverwritesOldest(t *testing.T) {
	r, err := NewTimeRing(2)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.Push(base)
	r.Push(base.Add(time.Second))
	r.Push(base.Add(2 * time.Second))

	assert.Equal(t, 2, r.Len())

	oldest, ok := r.Recent(1)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Second), oldest)
}

func TestSpan(t *testing.T) {
	r, err := NewTimeRing(5)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r.Push(base.Add(time.Duration(i) * time.Second))
	}

	span, ok := r.Span(3, 0)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, span)

	span, ok = r.Span(3, 2)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, span)

	// 条目不足
	_, ok = r.Span(3, 3)
	assert.False(t, ok)

	// limit过小
	_, ok = r.Span(1, 0)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	r, err := NewTimeRing(2)
	require.NoError(t, err)
	r.Push(time.Now())
	r.Clear()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Recent(0)
	assert.False(t, ok)
}
