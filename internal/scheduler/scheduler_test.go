package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	done := make(chan struct{})
	go func() {
		Every(ctx, "test", 10*time.Millisecond, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()
	<-done

	got := runs.Load()
	assert.GreaterOrEqual(t, got, int32(3), "expected the immediate run plus ticks")
}

func TestEverySkipsOverlappingTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	block := make(chan struct{})

	done := make(chan struct{})
	go func() {
		Every(ctx, "slow", 5*time.Millisecond, func(context.Context) error {
			started.Add(1)
			<-block
			return nil
		})
		close(done)
	}()

	// Many tick periods pass while the first run blocks; none may start.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(block)
	cancel()
	<-done
}

func TestNextAfter(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"later today",
			time.Date(2025, 6, 1, 8, 0, 0, 0, loc),
			time.Date(2025, 6, 1, 9, 0, 0, 0, loc),
		},
		{
			"already passed rolls to tomorrow",
			time.Date(2025, 6, 1, 10, 0, 0, 0, loc),
			time.Date(2025, 6, 2, 9, 0, 0, 0, loc),
		},
		{
			"exactly due rolls to tomorrow",
			time.Date(2025, 6, 1, 9, 0, 0, 0, loc),
			time.Date(2025, 6, 2, 9, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextAfter(tt.now, 9, 0, loc))
		})
	}
}

func TestDailyAtRunsAtDueTime(t *testing.T) {
	orig := timeNow
	// Freeze the clock a millisecond before the slot so the timer is due
	// almost immediately.
	timeNow = func() time.Time {
		return time.Date(2025, 6, 1, 8, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	defer func() { timeNow = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	var once sync.Once

	done := make(chan struct{})
	go func() {
		DailyAt(ctx, "digest", 9, 0, time.UTC, func(context.Context) error {
			once.Do(func() { close(ran) })
			return nil
		})
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("daily job did not run at its due time")
	}
	cancel()
	<-done
}

func TestDailyAtDoesNotFireDuringShutdown(t *testing.T) {
	orig := timeNow
	timeNow = func() time.Time {
		return time.Date(2025, 6, 1, 8, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	defer func() { timeNow = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		DailyAt(ctx, "digest", 9, 0, time.UTC, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DailyAt did not return after cancellation")
	}
	assert.Zero(t, runs.Load(), "a job due at shutdown must not run")
}
