package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrZeroImpressions is returned when a variant has no impressions, making
// its conversion rate undefined.
var ErrZeroImpressions = errors.New("variant has zero impressions")

// VariantCounts is the raw counter snapshot a significance check runs on.
type VariantCounts struct {
	ID          string
	Impressions int64
	Conversions int64
}

// Rate returns the conversion rate as a percentage (0-100).
func (v VariantCounts) Rate() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Impressions) * 100
}

// Result is the outcome of a pairwise significance check. Rates and the
// effect size are on the percentage scale (0-100); the confidence interval
// bounds are proportions (0-1) for the leading variant's rate.
type Result struct {
	RateA         float64
	RateB         float64
	EffectSize    float64 // absolute rate gap in percentage points
	Statistic     float64
	PValue        float64
	Power         float64
	CILower       float64
	CIUpper       float64
	IsSignificant bool
	Winner        string // winning variant label, empty unless significant
	Confidence    string // "high" when significant, otherwise "low"
}

// Compare runs a two-variant significance check at the given confidence
// level (0.90, 0.95 or 0.99; anything else is used as-is).
//
// The pooled variance is computed with rates on the percentage scale,
// mirroring the system this replaces. A textbook two-proportion z-test
// would pool on the 0-1 proportion scale instead; the percentage-scale
// form is kept deliberately so results match historical reports.
func Compare(a, b VariantCounts, confidenceLevel float64) (Result, error) {
	if a.Impressions == 0 || b.Impressions == 0 {
		return Result{}, ErrZeroImpressions
	}

	rateA := a.Rate()
	rateB := b.Rate()
	nA := float64(a.Impressions)
	nB := float64(b.Impressions)

	res := Result{
		RateA:      rateA,
		RateB:      rateB,
		EffectSize: math.Abs(rateA - rateB),
		Confidence: "low",
	}

	// A single impression per side leaves zero degrees of freedom, and
	// identical rates make the statistic exactly zero; both resolve to
	// the neutral p = 1.0 rather than NaN or a near-1 CDF artifact.
	if nA+nB <= 2 || rateA == rateB {
		res.PValue = 1.0
		return res, nil
	}

	pooled := ((nA-1)*rateA*(100-rateA) + (nB-1)*rateB*(100-rateB)) / (nA + nB - 2)
	se := math.Sqrt(pooled * (1/nA + 1/nB))

	// Zero variance: nothing to distinguish.
	if se == 0 {
		res.PValue = 1.0
		return res, nil
	}

	res.Statistic = res.EffectSize / se
	res.PValue = clamp01(2 * (1 - NormalCDF(res.Statistic)))

	alpha := 1 - confidenceLevel
	res.IsSignificant = res.PValue < alpha
	res.Power = observedPower(res.Statistic, alpha)

	leader := a
	if rateB > rateA {
		leader = b
	}
	res.CILower, res.CIUpper = WilsonInterval(int(leader.Conversions), int(leader.Impressions), confidenceLevel)

	if res.IsSignificant {
		res.Winner = leader.ID
		res.Confidence = "high"
	}

	return res, nil
}

// observedPower is the post-hoc power of a two-sided test: the probability
// of clearing the critical value given the observed statistic.
func observedPower(statistic, alpha float64) float64 {
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	crit := norm.Quantile(1 - alpha/2)
	return clamp01(norm.CDF(statistic - crit))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
