package calibrate

import (
	"math"
	"math/rand"
)

// LinearResult describes the dominant linear region RANSAC found.
type LinearResult struct {
	Slope       float64
	Intercept   float64
	Coverage    float64 // fraction of samples that fell inside tolerance
	StartX      float64
	EndX        float64
	InlierCount int
}

// FindDominantSlope uses RANSAC to find the longest region of points
// well-fit by a single line: the stretch of the curve where the sink
// tracks the offered load before it starts shedding. tolerance is the
// relative-error threshold a sample must fall within to count as an
// inlier (e.g. 0.05 for 5%).
func FindDominantSlope(points []Point, tolerance float64) LinearResult {
	n := len(points)
	if n < 2 {
		return LinearResult{}
	}

	const iterations = 500
	var bestInliers []Point

	for i := 0; i < iterations; i++ {
		idx1, idx2 := rand.Intn(n), rand.Intn(n)
		if idx1 == idx2 {
			continue
		}
		p1, p2 := points[idx1], points[idx2]
		if math.Abs(p2.X-p1.X) < 1e-9 {
			continue
		}
		m := (p2.Y - p1.Y) / (p2.X - p1.X)
		c := p1.Y - m*p1.X

		inliers := make([]Point, 0, n)
		for _, p := range points {
			predicted := m*p.X + c
			var errRatio float64
			if math.Abs(p.Y) < 1e-9 {
				errRatio = math.Abs(predicted - p.Y)
			} else {
				errRatio = math.Abs(predicted-p.Y) / math.Abs(p.Y)
			}
			if errRatio <= tolerance {
				inliers = append(inliers, p)
			}
		}
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
		}
	}

	if len(bestInliers) < 2 {
		return LinearResult{}
	}

	m, c := leastSquares(bestInliers)
	minX, maxX := bestInliers[0].X, bestInliers[0].X
	for _, p := range bestInliers {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
	}

	return LinearResult{
		Slope:       m,
		Intercept:   c,
		Coverage:    float64(len(bestInliers)) / float64(n),
		StartX:      minX,
		EndX:        maxX,
		InlierCount: len(bestInliers),
	}
}

func leastSquares(points []Point) (m, c float64) {
	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(points))
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumXX += p.X * p.X
	}
	m = (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	c = (sumY - m*sumX) / n
	return m, c
}
