package facematch

import (
	"errors"
	"math"
)

// DefaultZeroDistance is the euclidean distance at which two faces are
// considered unrelated. It matches the usual same-person threshold of the
// 128-d descriptor model, so anything past it scores 0.
const DefaultZeroDistance = 0.6

// Descriptor is a face embedding.
type Descriptor []float32

var errDimensionMismatch = errors.New("descriptor dimensions differ")

// EuclideanDistance returns the L2 distance between two descriptors.
// Lower distance means more similar faces.
func EuclideanDistance(a, b Descriptor) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, errDimensionMismatch
	}
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// ScoreFromDistance maps a distance onto 0..100, where 0 distance is 100 and
// zeroAt (or anything beyond) is 0.
func ScoreFromDistance(d, zeroAt float64) int {
	if zeroAt <= 0 {
		zeroAt = DefaultZeroDistance
	}
	// NaN carries no similarity information.
	if math.IsNaN(d) {
		return 0
	}
	if d < 0 {
		d = 0
	}
	score := math.Round((1 - d/zeroAt) * 100)
	return int(max(0, min(100, score)))
}
