package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPauseCompletesShortWait(t *testing.T) {
	t.Parallel()

	assert.True(t, pause(context.Background(), time.Millisecond))
}

func TestPauseZeroDuration(t *testing.T) {
	t.Parallel()

	assert.True(t, pause(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, pause(ctx, 0))
}

func TestPauseAbortsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	assert.False(t, pause(ctx, time.Hour))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRandomBaseDelayBounds(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		d := RandomBaseDelay(3*time.Second, 6*time.Second)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 6*time.Second)
		assert.Zero(t, d%time.Second, "delay must be whole seconds")
	}
}

func TestRandomBaseDelayDegenerateRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4*time.Second, RandomBaseDelay(4*time.Second, 4*time.Second))
	// An inverted range collapses to the lower bound.
	assert.Equal(t, 6*time.Second, RandomBaseDelay(6*time.Second, 3*time.Second))
	// Sub-second floors land on one second.
	assert.Equal(t, time.Second, RandomBaseDelay(0, 0))
}
