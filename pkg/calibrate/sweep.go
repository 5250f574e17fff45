package calibrate

import "fmt"

// SweepEval runs one trial of the whole trace at the given multiplier
// and reports the degradation metric observed at that multiplier (e.g.
// the sink's error rate, or its P99 latency in milliseconds); higher Y
// means worse.
type SweepEval func(multiplier float64) (y float64, err error)

// SweepResult is a completed multiplier sweep: every sampled point, the
// Kneedle-detected degradation point, and the sustained linear region
// before it.
type SweepResult struct {
	Points []Point
	Knee   Point
	Linear LinearResult
}

// Sweep runs eval once per multiplier in multipliers. Ascending order
// is expected but not required: Points are returned in the order given,
// and FindKnee sorts internally.
func Sweep(multipliers []float64, tolerance float64, eval SweepEval) (SweepResult, error) {
	if len(multipliers) == 0 {
		return SweepResult{}, fmt.Errorf("calibrate: sweep requires at least one multiplier")
	}

	points := make([]Point, 0, len(multipliers))
	for _, m := range multipliers {
		y, err := eval(m)
		if err != nil {
			return SweepResult{}, fmt.Errorf("calibrate: trial at multiplier %.3f: %w", m, err)
		}
		points = append(points, Point{X: m, Y: y})
	}

	return SweepResult{
		Points: points,
		Knee:   FindKnee(points),
		Linear: FindDominantSlope(points, tolerance),
	}, nil
}
