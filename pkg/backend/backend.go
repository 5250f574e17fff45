// Package backend defines the SourceBackend contract every FunctionWorker
// issues requests through, plus the backends that implement it: a NoOp
// sink for dry runs, an HTTP sink that actually invokes a FaaS endpoint,
// and a request-log sink that records what would have been sent.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/faastrace/loadgen/pkg/workload"
)

// ErrBudgetExceeded is returned by a Backend when it gives up on an
// in-flight issue because budget ran out, rather than because the
// downstream call itself failed. Workers log it like any other error;
// it never aborts the Worker.
var ErrBudgetExceeded = errors.New("backend: issue did not complete within budget")

// Backend is the one operation a FunctionWorker needs from its sink.
// Errors are the caller's to log: a Backend never panics on a failed
// issue, and a failed issue never aborts the Worker that made it.
//
// budget is the time remaining until the end of the current minute; a
// Backend should treat it as a soft deadline, returning promptly once
// ctx is done rather than fighting to complete the call regardless of
// cost.
type Backend interface {
	Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error

	// Clone returns an independently usable handle to the same
	// underlying sink, for a Worker that wants its own copy rather
	// than sharing one across goroutines. Stateless backends may
	// return themselves.
	Clone() Backend

	// Close releases any resources the backend holds (open files,
	// flushed buffers). Called once by the Client after every Worker
	// has exited.
	Close() error
}

// NoOp issues nothing and never fails; it exists so a run can exercise
// the full Worker/Client machinery (IAT generation, barrier timing,
// invocation-id allocation) without a live downstream endpoint.
type NoOp struct{}

func (NoOp) Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error {
	return nil
}

func (NoOp) Clone() Backend { return NoOp{} }
func (NoOp) Close() error   { return nil }
