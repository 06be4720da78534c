package physics

import "math"

// MaxRelativeDifference compares two acceleration buffers body by body and
// returns the largest |a_i - b_i| / |b_i|. Bodies whose reference vector is
// zero contribute their absolute difference instead.
func MaxRelativeDifference(a, b []float32, n int) float64 {
	worst := 0.0
	for i := 0; i < n; i++ {
		var diff, ref float64
		for k := 0; k < 3; k++ {
			d := float64(a[3*i+k]) - float64(b[3*i+k])
			r := float64(b[3*i+k])
			diff += d * d
			ref += r * r
		}
		rel := math.Sqrt(diff)
		if ref > 0 {
			rel /= math.Sqrt(ref)
		}
		worst = math.Max(worst, rel)
	}
	return worst
}
