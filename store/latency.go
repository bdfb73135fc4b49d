package store

import (
	"context"
	"math/rand/v2"
	"time"
)

// Latency simulates the round trip of a remote database
type Latency interface {
	Wait(ctx context.Context) error
}

// Fixed waits the same duration on every call
type Fixed time.Duration

// NoLatency resolves immediately
const NoLatency = Fixed(0)

func (d Fixed) Wait(ctx context.Context) error {
	return sleep(ctx, time.Duration(d))
}

// Jitter waits a random duration in [Min, Max)
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

func (j Jitter) Wait(ctx context.Context) error {
	d := j.Min
	if span := j.Max - j.Min; span > 0 {
		d += rand.N(span)
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
