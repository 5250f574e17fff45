// Package calibrate drives a run repeatedly at increasing RPM
// multipliers against the same backend, looking for the point where the
// downstream sink starts to degrade: a sweep samples the degradation
// curve, Kneedle locates its knee, RANSAC fits the sustained linear
// region before it, and a single-variable hill climb tunes the run-wide
// in-flight request budget.
package calibrate

// Point is one (x, y) sample taken during a sweep: x is the swept
// variable (a multiplier or a candidate in-flight budget), y is the
// observed metric (error rate or P99 latency).
type Point struct {
	X float64
	Y float64
}
