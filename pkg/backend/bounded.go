package backend

import (
	"context"
	"time"

	"github.com/faastrace/loadgen/pkg/workload"
)

// Bounded caps the number of Issue calls in flight at once across every
// clone sharing the same semaphore: one run-wide budget of outstanding
// invocations against a single downstream sink, not a per-Worker cap.
type Bounded struct {
	inner Backend
	sem   chan struct{}
}

// NewBounded wraps inner with a semaphore of the given width. width must
// be >= 1.
func NewBounded(inner Backend, width int) *Bounded {
	if width < 1 {
		width = 1
	}
	return &Bounded{inner: inner, sem: make(chan struct{}, width)}
}

func (b *Bounded) Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()
	return b.inner.Issue(ctx, invocationID, wreq, minute, budget)
}

// Clone shares the same semaphore and inner backend: the in-flight
// budget is global to a run, not per-Worker, so every clone must draw
// from the same channel.
func (b *Bounded) Clone() Backend { return b }

func (b *Bounded) Close() error { return b.inner.Close() }
