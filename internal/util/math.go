package util

import (
	"math"
)

// IsUsablePrice reports whether p can be traded against.
// Zero, negative, NaN, Inf and implausibly large prices are treated as a data gap.
func IsUsablePrice(p float64) bool {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return false
	}
	return p > 0 && p <= MaxReasonablePrice
}

// IsFinite reports whether v is neither NaN nor Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PercentChange returns (to-from)/from*100, or 0 when from is not positive
func PercentChange(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}
