package stats

import "math"

// Erf approximates the error function using the rational approximation
// from Abramowitz and Stegun, Handbook of Mathematical Functions,
// formula 7.1.26. Maximum absolute error is about 1.5e-7, which is
// plenty for significance testing. Odd: Erf(-x) == -Erf(x).
func Erf(x float64) float64 {
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return sign * y
}

// NormalCDF is the cumulative distribution function of the standard
// normal distribution.
func NormalCDF(z float64) float64 {
	return 0.5 * (1.0 + Erf(z/math.Sqrt2))
}
