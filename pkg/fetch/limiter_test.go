package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Interval(t *testing.T) {
	l := NewLimiter()
	l.SetBudget("gdelt", 1000)
	l.SetBudget("worldbank", 10000)

	assert.Equal(t, 86400*time.Millisecond, l.Interval("gdelt"))
	assert.Equal(t, 8640*time.Millisecond, l.Interval("worldbank"))
	assert.Equal(t, time.Duration(0), l.Interval("unknown"))
}

func TestLimiter_Allow(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewLimiter()
	l.now = func() time.Time { return current }
	l.SetBudget("gdelt", 1000)

	assert.True(t, l.Allow("gdelt"))
	assert.False(t, l.Allow("gdelt"))

	// just before the next slot
	current = current.Add(86 * time.Second)
	assert.False(t, l.Allow("gdelt"))

	current = current.Add(time.Second)
	assert.True(t, l.Allow("gdelt"))
}

func TestLimiter_AllowUnbudgeted(t *testing.T) {
	l := NewLimiter()
	assert.True(t, l.Allow("anything"))
	assert.True(t, l.Allow("anything"))
}

func TestLimiter_SourcesIndependent(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewLimiter()
	l.now = func() time.Time { return current }
	l.SetBudget("gdelt", 1000)
	l.SetBudget("worldbank", 10000)

	assert.True(t, l.Allow("gdelt"))
	assert.True(t, l.Allow("worldbank"))
	assert.False(t, l.Allow("gdelt"))
	assert.False(t, l.Allow("worldbank"))
}

func TestLimiter_MinimumBudget(t *testing.T) {
	l := NewLimiter()
	l.SetBudget("slow", 0)
	assert.Equal(t, 86400*time.Second, l.Interval("slow"))
}

func TestLimiter_AcquireImmediate(t *testing.T) {
	l := NewLimiter()
	l.SetBudget("gdelt", 1000)
	require.NoError(t, l.Acquire(context.Background(), "gdelt"))
}

func TestLimiter_AcquireCanceled(t *testing.T) {
	l := NewLimiter()
	l.SetBudget("gdelt", 1000)
	require.True(t, l.Allow("gdelt"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx, "gdelt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_ConcurrentAllow(t *testing.T) {
	l := NewLimiter()
	l.SetBudget("gdelt", 1)

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("gdelt") {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed)
}
