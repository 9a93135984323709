// Package pacing provides fixed-rate admission control for the pipeline
// loops. A Pacer spaces out work starts to a target rate without drifting
// and without bursting after a stall.
package pacing

import (
	"context"
	"time"
)

// Clock provides the current time. Injected for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock uses the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Pacer schedules work starts at a fixed rate. It never sleeps itself:
// Admit returns how long the caller must wait before starting, and the
// caller performs the wait (observing its own cancellation).
//
// A Pacer is owned by exactly one loop. It is not safe for concurrent use;
// each worker runs its own instance.
type Pacer struct {
	interval    time.Duration
	clock       Clock
	nextAllowed time.Time
}

// NewPacer creates a pacer for the given rate in units per second.
// A rate of zero or below disables pacing; every call is admitted
// immediately.
func NewPacer(rate float64) *Pacer {
	return NewPacerWithClock(rate, SystemClock{})
}

// NewPacerWithClock creates a pacer with an explicit time source.
func NewPacerWithClock(rate float64, clock Clock) *Pacer {
	p := &Pacer{clock: clock}
	if rate > 0 {
		p.interval = time.Duration(float64(time.Second) / rate)
	}
	return p
}

// Interval returns the spacing between admitted starts, zero when pacing
// is disabled.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Admit reserves the next start slot and returns how long the caller must
// wait before beginning work.
//
// The first call is admitted immediately. A caller ahead of schedule gets
// the remaining wait and the following slot is reserved one interval
// further out, so an early wake-up cannot inflate the rate. A caller at or
// past its slot is admitted immediately and the schedule re-anchors to the
// current time, so a stalled loop resumes at the configured rate instead
// of bursting through its missed slots.
func (p *Pacer) Admit() time.Duration {
	if p.interval <= 0 {
		return 0
	}

	now := p.clock.Now()

	if p.nextAllowed.IsZero() || !now.Before(p.nextAllowed) {
		p.nextAllowed = now.Add(p.interval)
		return 0
	}

	wait := p.nextAllowed.Sub(now)
	p.nextAllowed = p.nextAllowed.Add(p.interval)
	return wait
}

// Wait admits the caller and sleeps for the returned duration, returning
// early with the context error if ctx is cancelled first.
func Wait(ctx context.Context, p *Pacer) error {
	d := p.Admit()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
