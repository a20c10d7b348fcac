package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/metrics"
)

// gate bounds checkouts to MaxConnections and queues the rest, up to
// QueueLimit waiters, for at most AcquireTimeout.
type gate struct {
	sem        *semaphore.Weighted
	max        int
	queueLimit int64
	timeout    time.Duration
	inUse      atomic.Int64
	waiting    atomic.Int64
	metrics    *metrics.Metrics
}

func newGate(opts Options, m *metrics.Metrics) *gate {
	max := opts.MaxConnections
	if max < 1 {
		max = 1
	}
	return &gate{
		sem:        semaphore.NewWeighted(int64(max)),
		max:        max,
		queueLimit: int64(opts.QueueLimit),
		timeout:    opts.AcquireTimeout,
		metrics:    m,
	}
}

// enter blocks until a slot is free. On success the caller owns one slot and
// must call leave exactly once.
func (g *gate) enter(ctx context.Context) error {
	start := time.Now()

	if g.sem.TryAcquire(1) {
		g.admit(start)
		return nil
	}

	n := g.waiting.Add(1)
	if g.queueLimit > 0 && n > g.queueLimit {
		g.waiting.Add(-1)
		g.metrics.ObserveAcquire(metrics.ResultExhausted, time.Since(start))
		return domain.NewDomainError(domain.ErrPoolExhausted, fmt.Sprintf("wait queue full (%d)", g.queueLimit), "")
	}
	g.publish()

	waitCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	err := g.sem.Acquire(waitCtx, 1)
	g.waiting.Add(-1)

	if err != nil {
		g.publish()
		if ctx.Err() != nil {
			g.metrics.ObserveAcquire(metrics.ResultCanceled, time.Since(start))
			return ctx.Err()
		}
		g.metrics.ObserveAcquire(metrics.ResultExhausted, time.Since(start))
		return domain.NewDomainError(domain.ErrPoolExhausted, fmt.Sprintf("no connection free after %s", g.timeout), "")
	}

	g.admit(start)
	return nil
}

func (g *gate) admit(start time.Time) {
	g.inUse.Add(1)
	g.metrics.ObserveAcquire(metrics.ResultSuccess, time.Since(start))
	g.publish()
}

// leave returns a slot taken by enter.
func (g *gate) leave() {
	g.inUse.Add(-1)
	g.sem.Release(1)
	g.publish()
}

func (g *gate) publish() {
	g.metrics.SetPoolGauges(g.inUse.Load(), g.waiting.Load())
}

func (g *gate) stats() Stats {
	return Stats{
		MaxConnections: g.max,
		InUse:          g.inUse.Load(),
		Waiting:        g.waiting.Load(),
	}
}
