// Package report reconstructs the achieved-RPM curve from a request-log
// file, for comparing "configured RPM" against what actually left the
// wire once a run has shed load under backpressure. Each invocation is
// a zero-duration event, so the span it contributes to the
// instantaneous-rate curve is synthesized from the gap to the next
// invocation of the same function: a start event adds 1/gap to the
// active rate, the matching end event removes it, and a sweep line over
// the event priority queue sums whatever is active into one-second
// buckets.
package report

import (
	"bufio"
	"container/heap"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Sample is one request-log line's fields relevant to rate
// reconstruction.
type Sample struct {
	EpochUs int64
	Bench   string
}

// Point is one (time-in-seconds-since-first-request, achieved RPM) pair.
type Point struct {
	Seconds float64
	RPM     float64
}

// eventType orders End before Start at equal timestamps, so an
// invocation ending exactly when the next one starts never produces a
// momentary double-counted spike.
type eventType int

const (
	eventEnd   eventType = -1
	eventStart eventType = 1
)

type event struct {
	atUs int64
	typ  eventType
	rate float64 // contribution in events/microsecond
}

type eventPQ []event

func (pq eventPQ) Len() int { return len(pq) }
func (pq eventPQ) Less(i, j int) bool {
	if pq[i].atUs == pq[j].atUs {
		return pq[i].typ < pq[j].typ
	}
	return pq[i].atUs < pq[j].atUs
}
func (pq eventPQ) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *eventPQ) Push(x any)   { *pq = append(*pq, x.(event)) }
func (pq *eventPQ) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// requestLogLine mirrors backend.requestLogLine's wire shape closely
// enough to pull out epoch_us and the function id without importing the
// backend package (report has no other reason to depend on it).
type requestLogLine struct {
	EpochUs int64 `json:"epoch_us"`
	Wreq    struct {
		Bench string `json:"bench"`
	} `json:"wreq"`
}

// ReadSamples parses a request-log file (one JSON object per line, per
// backend.Log's output format) into Samples ordered as they appear in
// the file.
func ReadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Sample
	dec := json.NewDecoder(bufio.NewReaderSize(f, 64*1024))
	for {
		var line requestLogLine
		if err := dec.Decode(&line); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("report: decode %s: %w", path, err)
		}
		out = append(out, Sample{EpochUs: line.EpochUs, Bench: line.Wreq.Bench})
	}
	return out, nil
}

// AchievedRate reconstructs the combined achieved-RPM curve across every
// function present in samples, binned into one-second buckets. The last
// sample of each function contributes no span: there is no "next"
// invocation to measure a gap against.
func AchievedRate(samples []Sample) []Point {
	byBench := make(map[string][]int64)
	for _, s := range samples {
		byBench[s.Bench] = append(byBench[s.Bench], s.EpochUs)
	}

	var pq eventPQ
	var minTime int64 = math.MaxInt64
	for _, times := range byBench {
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		for i := 0; i+1 < len(times); i++ {
			gap := times[i+1] - times[i]
			if gap <= 0 {
				continue
			}
			rate := 1.0 / float64(gap)
			heap.Push(&pq, event{atUs: times[i], typ: eventStart, rate: rate})
			heap.Push(&pq, event{atUs: times[i+1], typ: eventEnd, rate: rate})
		}
		if len(times) > 0 && times[0] < minTime {
			minTime = times[0]
		}
	}
	if pq.Len() == 0 {
		return nil
	}

	bucketUs := int64(1_000_000)
	buckets := make(map[int64]float64)
	var lastTime int64 = pq[0].atUs
	var currentRate float64

	for pq.Len() > 0 {
		evt := heap.Pop(&pq).(event)
		if evt.atUs > lastTime {
			delta := evt.atUs - lastTime
			bin := (lastTime - minTime) / bucketUs
			buckets[bin] += float64(delta) * currentRate
			lastTime = evt.atUs
		}
		currentRate += float64(evt.typ) * evt.rate
		if currentRate < 1e-12 {
			currentRate = 0
		}
	}

	var bins []int64
	for b := range buckets {
		bins = append(bins, b)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })

	// buckets[b] holds the expected event count within that one-second
	// bucket (rate in events/microsecond times the microseconds it was
	// in effect); a one-second bucket's count times 60 is its RPM.
	points := make([]Point, 0, len(bins))
	for _, b := range bins {
		points = append(points, Point{
			Seconds: float64(b) * float64(bucketUs) / 1e6,
			RPM:     buckets[b] * 60,
		})
	}
	return points
}

// WriteCSV writes points as "seconds,achieved_rpm" to path.
func WriteCSV(path string, points []Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"seconds", "achieved_rpm"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := w.Write([]string{
			fmt.Sprintf("%.3f", p.Seconds),
			fmt.Sprintf("%.2f", p.RPM),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
