package rasch

import "math"

// Parameter bounds. Estimates are clamped to these after every pass.
const (
	MinB     = -4.0
	MaxB     = 4.0
	MinTheta = -6.0
	MaxTheta = 6.0
)

// Probability returns the chance a person with ability theta answers an
// item of difficulty b correctly.
func Probability(theta, b float64) float64 {
	return 1.0 / (1.0 + math.Exp(-(theta - b)))
}

// Information is the Fisher information p(1-p) of one response.
func Information(p float64) float64 {
	return p * (1 - p)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isExtremeB(b float64) bool {
	return b <= MinB || b >= MaxB
}

func isExtremeTheta(theta float64) bool {
	return theta <= MinTheta || theta >= MaxTheta
}
