package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	calls   atomic.Int32
	running atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (c *countingChecker) RunAll(context.Context) map[string]string {
	if c.running.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.running.Add(-1)
	c.calls.Add(1)
	time.Sleep(c.delay)
	return map[string]string{}
}

func TestScheduler(t *testing.T) {
	var (
		ctx, cancel = context.WithCancel(context.Background())
		checker     = &countingChecker{delay: 1500 * time.Millisecond}
		s           = New(checker, time.Second)
		done        = make(chan error, 1)
	)
	go func() { done <- s.Run(ctx) }()

	// The first check starts right away without waiting for a tick.
	require.Eventually(t, func() bool { return checker.calls.Load() >= 1 }, 500*time.Millisecond, 10*time.Millisecond)

	// The one second tick lands while the first check is still running.
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, int32(1), checker.calls.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, checker.overlap.Load())
}
