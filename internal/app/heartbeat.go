package app

import (
	"context"
	"time"
)

// heartbeatLoop drives the scheduler: one merge-and-promote pass plus a
// bounded drain per tick. When the scheduler reports idle time ahead the
// timer stretches, and a Wake signal (new work admitted) pulls it back in so
// an immediate enqueue never waits out a long idle sleep.
func (a *App) heartbeatLoop(ctx context.Context) {
	tick := a.heartbeat.tick
	timer := time.NewTimer(tick)
	defer timer.Stop()
	deadline := time.Now().Add(tick)

	reset := func(d time.Duration) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
		deadline = time.Now().Add(d)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.sched.Wake():
			if time.Until(deadline) > tick {
				reset(tick)
			}
		case <-timer.C:
			a.sched.RunSecond()
			a.sched.RunTop(a.heartbeat.budget)

			sleep := time.Duration(a.sched.NextDue()) * tick
			if sleep < tick {
				sleep = tick
			}
			reset(sleep)
		}
	}
}
