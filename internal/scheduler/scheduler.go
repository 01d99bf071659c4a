// Package scheduler provides the two loop shapes the bot runs on: a fixed
// interval with non-overlapping ticks, and a daily wall-clock trigger.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Every runs job at the given interval until ctx is canceled. A tick that
// arrives while the previous job is still running is skipped, never queued,
// so a slow job can delay work but not pile it up. Job failures are logged
// and do not stop the loop.
func Every(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var running atomic.Bool
	run := func() {
		if !running.CompareAndSwap(false, true) {
			log.Warn().Str("job", name).Msg("previous tick still running, skipping")
			return
		}
		go func() {
			defer running.Store(false)
			if err := job(ctx); err != nil {
				log.Error().Err(err).Str("job", name).Msg("tick failed")
			}
		}()
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// timeNow is swapped in tests.
var timeNow = time.Now

// DailyAt runs job every day at hour:minute in loc until ctx is canceled.
// A job due during shutdown does not fire: ctx is checked right before the
// invocation.
func DailyAt(ctx context.Context, name string, hour, minute int, loc *time.Location, job func(context.Context) error) {
	for {
		now := timeNow().In(loc)
		next := nextAfter(now, hour, minute, loc)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := job(ctx); err != nil {
			log.Error().Err(err).Str("job", name).Msg("daily job failed")
		}
	}
}

// nextAfter returns the first hour:minute occurrence in loc strictly after
// now, rolling to the next day when today's slot has passed.
func nextAfter(now time.Time, hour, minute int, loc *time.Location) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
