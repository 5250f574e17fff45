package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faastrace/loadgen/pkg/stats"
	"github.com/faastrace/loadgen/pkg/workload"
)

const requestLogBufferBytes = 64 * 1024

// requestLogLine is the persisted shape of one request-log entry,
// per the "request log" output format: epoch, invocation id, and the
// WorkloadRequest that was issued.
type requestLogLine struct {
	EpochUs      uint64                    `json:"epoch_us"`
	InvocationID string                    `json:"invocation_id"`
	Wreq         *workload.WorkloadRequest `json:"wreq"`
}

// Log is the request-log sink: instead of calling a real downstream
// endpoint, it records what would have been sent, one JSON line per
// request. It tracks its own write latency in a stats.Histogram,
// readable through Summary once the run is over.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	hist *stats.Histogram
}

// NewLog opens path for exclusive creation (it must not already exist)
// and wraps it in a 64 KiB buffered writer.
func NewLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("backend: open request log %s: %w", path, err)
	}
	return &Log{
		f:    f,
		w:    bufio.NewWriterSize(f, requestLogBufferBytes),
		hist: stats.NewHistogram(),
	}, nil
}

func (l *Log) Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error {
	start := time.Now()
	line := requestLogLine{EpochUs: uint64(start.UnixMicro()), InvocationID: invocationID, Wreq: wreq}

	l.mu.Lock()
	enc := json.NewEncoder(l.w)
	err := enc.Encode(line)
	l.mu.Unlock()

	l.hist.Record(time.Since(start).Microseconds())

	if err != nil {
		return fmt.Errorf("backend: write request log line for %s: %w", invocationID, err)
	}
	return nil
}

// Clone returns a handle sharing this Log's underlying writer; writes
// are serialised by l.mu so concurrent Workers never interleave lines.
func (l *Log) Clone() Backend { return l }

// Summary reports the recorded write-latency distribution in
// microseconds, for the Client to log once every Worker has exited.
func (l *Log) Summary() (count int64, meanUs, p99Us float64) {
	return l.hist.TotalCount(), l.hist.Mean(), float64(l.hist.ValueAtQuantile(0.99))
}

// Close flushes the buffered writer and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return fmt.Errorf("backend: flush request log: %w", err)
	}
	return l.f.Close()
}
