package app

import (
	"context"
	"time"
)

// NextReset returns the first instant after now at hourUTC:00 UTC.
func NextReset(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunDailyReset calls ResetDaily at hourUTC every day until ctx is done.
func (g *Gate) RunDailyReset(ctx context.Context, hourUTC int) error {
	for {
		wait := time.Until(NextReset(time.Now(), hourUTC))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			g.ResetDaily(ctx)
		}
	}
}
