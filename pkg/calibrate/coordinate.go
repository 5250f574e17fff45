package calibrate

import "fmt"

// Eval runs one trial at the given in-flight budget width and reports
// the observed error rate (failed issues / attempted issues) for that
// trial.
type Eval func(width int) (errorRate float64, err error)

// CoordinateResult is the in-flight budget Tune settled on.
type CoordinateResult struct {
	Width     int
	ErrorRate float64
	History   []WidthTrial
}

// WidthTrial records one width tried during the hill climb.
type WidthTrial struct {
	Width     int
	ErrorRate float64
}

// Tune hill-climbs a single scalar, the backend.Bounded in-flight
// request width, against an error-rate objective: start in the middle
// of [min, max], try a step up and, only if that does not improve, a
// step down; move to the first that improves (lower error rate wins),
// halve the step once neither improves, stop once the step reaches zero.
func Tune(min, max int, eval Eval) (CoordinateResult, error) {
	if min < 1 {
		min = 1
	}
	if max < min {
		return CoordinateResult{}, fmt.Errorf("calibrate: max (%d) < min (%d)", max, min)
	}

	current := (min + max) / 2
	bestRate, err := eval(current)
	if err != nil {
		return CoordinateResult{}, fmt.Errorf("calibrate: initial trial at width %d: %w", current, err)
	}
	history := []WidthTrial{{Width: current, ErrorRate: bestRate}}

	step := (max - min) / 4
	if step < 1 {
		step = 1
	}

	for step >= 1 {
		improved := false

		if current+step <= max {
			rate, err := eval(current + step)
			if err != nil {
				return CoordinateResult{}, fmt.Errorf("calibrate: trial at width %d: %w", current+step, err)
			}
			history = append(history, WidthTrial{Width: current + step, ErrorRate: rate})
			if rate < bestRate {
				bestRate = rate
				current = current + step
				improved = true
			}
		}

		if !improved && current-step >= min {
			rate, err := eval(current - step)
			if err != nil {
				return CoordinateResult{}, fmt.Errorf("calibrate: trial at width %d: %w", current-step, err)
			}
			history = append(history, WidthTrial{Width: current - step, ErrorRate: rate})
			if rate < bestRate {
				bestRate = rate
				current = current - step
				improved = true
			}
		}

		if !improved {
			step /= 2
		}
	}

	return CoordinateResult{Width: current, ErrorRate: bestRate, History: history}, nil
}
