// Package stats wraps HdrHistogram-go behind the small interface the
// rest of this repo records latencies through.
package stats

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram records microsecond latencies into an HDR histogram. It is
// safe for concurrent use: every Worker clone of a request-log sink
// records into the same Histogram.
type Histogram struct {
	mu   sync.Mutex
	impl *hdrhistogram.Histogram
}

// NewHistogram tracks values from 1 microsecond to 1 hour at 3
// significant figures.
func NewHistogram() *Histogram {
	return &Histogram{impl: hdrhistogram.New(1, 3600*1000*1000, 3)}
}

// Record records a latency in microseconds. Negative values are ignored,
// 0 is recorded as 1; values above the trackable maximum are dropped.
func (h *Histogram) Record(valUs int64) {
	if valUs < 0 {
		return
	}
	if valUs < 1 {
		valUs = 1
	}
	h.mu.Lock()
	h.impl.RecordValue(valUs)
	h.mu.Unlock()
}

// Merge folds other's recorded values into h.
func (h *Histogram) Merge(other *Histogram) {
	other.mu.Lock()
	snapshot := hdrhistogram.Import(other.impl.Export())
	other.mu.Unlock()

	h.mu.Lock()
	h.impl.Merge(snapshot)
	h.mu.Unlock()
}

// ValueAtQuantile returns the value at quantile q in [0.0, 1.0].
func (h *Histogram) ValueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.impl.ValueAtQuantile(q * 100.0)
}

func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.impl.Mean()
}

func (h *Histogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.impl.TotalCount()
}

func (h *Histogram) Min() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.impl.Min()
}

func (h *Histogram) Max() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.impl.Max()
}

func (h *Histogram) StdDev() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.impl.StdDev()
}

// Reset discards every recorded value.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.impl.Reset()
}
