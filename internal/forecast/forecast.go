// Package forecast projects campaign metrics forward over a monthly
// horizon. The model is intentionally simple: each period applies a
// linear 5% growth factor to the baseline (not compounded across
// periods) and a confidence score that decays 2% per period with a 0.7
// floor. Identical inputs always produce the identical series.
package forecast

import (
	"errors"
	"math"
	"time"

	mstats "github.com/montanaflynn/stats"
)

const (
	growthPerPeriod   = 0.05
	decayPerPeriod    = 0.02
	confidenceFloor   = 0.7
	maxHorizonPeriods = 60
)

// Factors are the qualitative drivers attached to every forecast point.
// They explain what the projection assumes; they are not model inputs.
var Factors = []string{
	"seasonal trends",
	"market growth",
	"campaign performance",
	"competitor activity",
}

var (
	// ErrHorizon is returned for a non-positive or oversized horizon.
	ErrHorizon = errors.New("horizon must be between 1 and 60 periods")

	// ErrNoHistory is returned when a baseline is requested from an
	// empty history.
	ErrNoHistory = errors.New("no historical periods supplied")
)

// Baseline is the per-period starting point a projection grows from.
type Baseline struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
}

// Point is one projected period. Counts are floored to whole units,
// money is rounded to cents.
type Point struct {
	Period      time.Time `json:"period"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	Revenue     float64   `json:"revenue"`
	Cost        float64   `json:"cost"`
	Confidence  float64   `json:"confidence"`
	Factors     []string  `json:"factors"`
}

// Generate projects the baseline across the horizon, one point per
// month starting the month after `from`.
func Generate(baseline Baseline, horizon int, from time.Time) ([]Point, error) {
	if horizon < 1 || horizon > maxHorizonPeriods {
		return nil, ErrHorizon
	}

	points := make([]Point, 0, horizon)
	for i := 1; i <= horizon; i++ {
		growth := 1 + growthPerPeriod*float64(i)
		confidence := math.Max(confidenceFloor, 1-decayPerPeriod*float64(i))

		points = append(points, Point{
			Period:      from.AddDate(0, i, 0),
			Impressions: scaleCount(baseline.Impressions, growth),
			Clicks:      scaleCount(baseline.Clicks, growth),
			Conversions: scaleCount(baseline.Conversions, growth),
			Revenue:     scaleMoney(baseline.Revenue, growth),
			Cost:        scaleMoney(baseline.Cost, growth),
			Confidence:  confidence,
			Factors:     append([]string(nil), Factors...),
		})
	}

	return points, nil
}

// BaselineFromHistory averages observed periods into a baseline, so
// callers can hand over raw history instead of a pre-aggregated one.
func BaselineFromHistory(history []Baseline) (Baseline, error) {
	if len(history) == 0 {
		return Baseline{}, ErrNoHistory
	}

	impressions := make([]float64, len(history))
	clicks := make([]float64, len(history))
	conversions := make([]float64, len(history))
	revenue := make([]float64, len(history))
	cost := make([]float64, len(history))
	for i, h := range history {
		impressions[i] = float64(h.Impressions)
		clicks[i] = float64(h.Clicks)
		conversions[i] = float64(h.Conversions)
		revenue[i] = h.Revenue
		cost[i] = h.Cost
	}

	meanImpressions, _ := mstats.Mean(impressions)
	meanClicks, _ := mstats.Mean(clicks)
	meanConversions, _ := mstats.Mean(conversions)
	meanRevenue, _ := mstats.Mean(revenue)
	meanCost, _ := mstats.Mean(cost)

	return Baseline{
		Impressions: int64(math.Floor(meanImpressions)),
		Clicks:      int64(math.Floor(meanClicks)),
		Conversions: int64(math.Floor(meanConversions)),
		Revenue:     roundCents(meanRevenue),
		Cost:        roundCents(meanCost),
	}, nil
}

func scaleCount(base int64, growth float64) int64 {
	return int64(math.Floor(float64(base) * growth))
}

func scaleMoney(base, growth float64) float64 {
	return roundCents(base * growth)
}

func roundCents(x float64) float64 {
	return math.Round(x*100) / 100
}
