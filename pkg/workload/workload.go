// Package workload holds the per-function invocation template
// (WorkloadRequest), the CSV row it's parsed from (FunctionRow), and the
// MinuteRange a run is scoped to.
package workload

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WorkloadRequest is the per-function invocation template. Equality
// (Equal) is defined solely over (Bench, Payload); no ordering is
// defined on the type. Mean/Stdev carry
// non-finite sentinels (NaN when absent) that must round-trip through
// JSON transparently: non-finite values are omitted on marshal and default
// to NaN on unmarshal, since encoding/json rejects NaN/Inf outright.
type WorkloadRequest struct {
	Mean    float64
	Stdev   float64
	Bench   string
	Payload string
}

// Equal compares only Bench and Payload; Mean and Stdev are advisory
// and never participate in equality.
func (w WorkloadRequest) Equal(o WorkloadRequest) bool {
	return w.Bench == o.Bench && w.Payload == o.Payload
}

// wireWorkloadRequest is WorkloadRequest's JSON shape: Mean/Stdev are
// plain optional floats on the wire, never the string "NaN" literal that
// json.Marshal would otherwise reject.
type wireWorkloadRequest struct {
	Mean    *float64 `json:"mean,omitempty"`
	Stdev   *float64 `json:"stdev,omitempty"`
	Bench   string   `json:"bench"`
	Payload string   `json:"payload"`
}

// MarshalJSON omits Mean/Stdev when they are not finite.
func (w WorkloadRequest) MarshalJSON() ([]byte, error) {
	wire := wireWorkloadRequest{Bench: w.Bench, Payload: w.Payload}
	if !math.IsNaN(w.Mean) && !math.IsInf(w.Mean, 0) {
		v := w.Mean
		wire.Mean = &v
	}
	if !math.IsNaN(w.Stdev) && !math.IsInf(w.Stdev, 0) {
		v := w.Stdev
		wire.Stdev = &v
	}
	return json.Marshal(wire)
}

// UnmarshalJSON defaults absent Mean/Stdev to NaN.
func (w *WorkloadRequest) UnmarshalJSON(data []byte) error {
	var wire wireWorkloadRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Bench == "" {
		return fmt.Errorf("workload: bench is required")
	}
	w.Bench = wire.Bench
	w.Payload = wire.Payload
	if wire.Mean != nil {
		w.Mean = *wire.Mean
	} else {
		w.Mean = math.NaN()
	}
	if wire.Stdev != nil {
		w.Stdev = *wire.Stdev
	} else {
		w.Stdev = math.NaN()
	}
	return nil
}

// FunctionRow is one CSV record: an advisory average, the JSON-encoded
// WorkloadRequest, and the per-minute RPM schedule (element i is the
// target for minute i+1; minutes are 1-based).
type FunctionRow struct {
	Pavg       float64
	MappedWreq string
	RPM        []uint32
}

// MinuteRange is an inclusive [First, Last] window, 1 <= First <= Last <= 65535.
type MinuteRange struct {
	First uint16
	Last  uint16
}

// DefaultMinuteRange covers every minute a schedule could possibly name.
func DefaultMinuteRange() MinuteRange {
	return MinuteRange{First: 1, Last: 65535}
}

// NewMinuteRange validates and constructs a MinuteRange.
func NewMinuteRange(first, last uint16) (MinuteRange, error) {
	if first == 0 {
		return MinuteRange{}, fmt.Errorf("minute range: first must be >= 1, got 0")
	}
	if first > last {
		return MinuteRange{}, fmt.Errorf("minute range: first (%d) > last (%d)", first, last)
	}
	return MinuteRange{First: first, Last: last}, nil
}

// Contains reports whether minute m (1-based) falls within the range.
func (r MinuteRange) Contains(m uint16) bool {
	return m >= r.First && m <= r.Last
}

// ParseMinuteRange accepts "A:B" or "A..B", with optional surrounding
// whitespace around the separator.
func ParseMinuteRange(s string) (MinuteRange, error) {
	s = strings.TrimSpace(s)
	sep := ":"
	if idx := strings.Index(s, ".."); idx >= 0 {
		sep = ".."
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return MinuteRange{}, fmt.Errorf("minute range: expected \"A:B\" or \"A..B\", got %q", s)
	}
	first, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
	if err != nil {
		return MinuteRange{}, fmt.Errorf("minute range: bad first minute %q: %w", parts[0], err)
	}
	last, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return MinuteRange{}, fmt.Errorf("minute range: bad last minute %q: %w", parts[1], err)
	}
	return NewMinuteRange(uint16(first), uint16(last))
}
