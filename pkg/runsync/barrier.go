// Package runsync holds the single piece of shared, lock-free state a run
// has: the minute barrier every FunctionWorker rendezvouses at, and the
// globally monotonic invocation-id counter. Neither is a process-wide
// singleton; both are parameterised at construction and owned by one
// SourceClient.
package runsync

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Barrier is a reusable (cyclic) rendezvous point of fixed arity: it is
// reused once per minute, every participant arriving and passing
// through together. Each generation has its own release channel; the
// last arrival swaps a fresh one in before closing the old, so a fast
// worker re-arriving for the next minute can never consume this
// minute's release.
type Barrier struct {
	mu      sync.Mutex
	arity   int
	waiting int
	release chan struct{}
}

// NewBarrier returns a Barrier of the given arity. arity must be >= 1.
func NewBarrier(arity int) *Barrier {
	if arity < 1 {
		panic(fmt.Sprintf("runsync: barrier arity must be >= 1, got %d", arity))
	}
	return &Barrier{arity: arity, release: make(chan struct{})}
}

// Arrive blocks until every participant has called Arrive for this
// generation, then returns true once all are released together. If
// cancel fires first, Arrive returns false without waiting for the
// barrier to fill: the caller is giving up on this rendezvous, but its
// arrival stays counted for this generation, so the remaining
// participants still fill the barrier at the same arity.
func (b *Barrier) Arrive(cancel <-chan struct{}) bool {
	b.mu.Lock()
	myRelease := b.release
	b.waiting++
	if b.waiting == b.arity {
		b.waiting = 0
		b.release = make(chan struct{})
		close(myRelease)
		b.mu.Unlock()
		return true
	}
	b.mu.Unlock()

	select {
	case <-myRelease:
		return true
	case <-cancel:
		return false
	}
}

// WorkerSync is the state shared by every FunctionWorker in one run: the
// per-minute barrier and the invocation-id counter.
type WorkerSync struct {
	barrier *Barrier
	counter uint64
}

// NewWorkerSync builds a WorkerSync for arity workers, with the
// invocation-id counter seeded at invocIDStart.
func NewWorkerSync(arity int, invocIDStart uint64) *WorkerSync {
	return &WorkerSync{
		barrier: NewBarrier(arity),
		counter: invocIDStart,
	}
}

// ArriveAtMinuteBarrier is the per-minute rendezvous every active worker
// passes through together before issuing its first request for that
// minute.
func (s *WorkerSync) ArriveAtMinuteBarrier(cancel <-chan struct{}) bool {
	return s.barrier.Arrive(cancel)
}

// NextInvocationID atomically allocates the next globally-unique
// invocation id, formatted as a 24-character zero-padded decimal string.
func (s *WorkerSync) NextInvocationID() string {
	id := atomic.AddUint64(&s.counter, 1) - 1
	return fmt.Sprintf("%024d", id)
}
