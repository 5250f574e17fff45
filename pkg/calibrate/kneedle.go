package calibrate

import (
	"math"
	"sort"
)

// FindKnee implements the Kneedle algorithm to find the point of
// maximum curvature. The swept metric is degradation, so the expected
// curve is flat and then rising; the furthest point from the diagonal
// connecting the first and last normalized samples is the knee, on
// whichever side of the diagonal it lies; ties go to the later sample.
func FindKnee(points []Point) Point {
	if len(points) < 3 {
		if len(points) > 0 {
			return points[len(points)-1]
		}
		return Point{}
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	minX, maxX := sorted[0].X, sorted[len(sorted)-1].X
	minY, maxY := sorted[0].Y, sorted[0].Y
	for _, p := range sorted {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	if maxX == minX || maxY == minY {
		return sorted[len(sorted)-1]
	}

	maxDist := -1.0
	var knee Point
	for _, p := range sorted {
		xNorm := (p.X - minX) / (maxX - minX)
		yNorm := (p.Y - minY) / (maxY - minY)
		dist := math.Abs(yNorm - xNorm)
		if dist >= maxDist {
			maxDist = dist
			knee = p
		}
	}
	return knee
}
