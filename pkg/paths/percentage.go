package paths

import "math"

// CoveragePercentage returns round(100 * covered / total), or -1 when total
// is zero and no meaningful value exists.
func CoveragePercentage(covered, total int) int {
	if total <= 0 {
		return -1
	}
	return int(math.Floor(100.0*float64(covered)/float64(total) + 0.5))
}
