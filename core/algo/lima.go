// Package algo holds the statistical kernels shared by the significance engine.
package algo

import "math"

// LiMa returns the signed Li & Ma (1983, eq. 17) significance of non on-counts
// against noff off-counts scaled by alpha. The sign follows non - alpha*noff.
// ok is false when alpha is not positive or a count is negative.
func LiMa(non, noff, alpha float64) (float64, bool) {
	if !(alpha > 0) || non < 0 || noff < 0 || math.IsInf(alpha, 0) {
		return 0, false
	}
	total := non + noff
	if total == 0 {
		return 0, true
	}

	var sum float64
	if non > 0 {
		sum += non * math.Log((1+alpha)/alpha*(non/total))
	}
	if noff > 0 {
		sum += noff * math.Log((1+alpha)*(noff/total))
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, false
	}
	if sum < 0 {
		// rounding near zero excess
		sum = 0
	}

	s := math.Sqrt(2 * sum)
	if math.IsInf(s, 0) {
		return 0, false
	}
	if non-alpha*noff < 0 {
		s = -s
	}
	return s, true
}

// Excess returns non - alpha*noff and its Poisson error sqrt(non + alpha^2*noff).
func Excess(non, noff, alpha float64) (excess, err float64) {
	excess = non - alpha*noff
	v := non + alpha*alpha*noff
	if v > 0 {
		err = math.Sqrt(v)
	}
	return excess, err
}
