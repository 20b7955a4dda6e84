package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var anchor = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate_GrowthAndDecay(t *testing.T) {
	baseline := Baseline{
		Impressions: 10000,
		Clicks:      800,
		Conversions: 40,
		Revenue:     2000,
		Cost:        500,
	}

	points, err := Generate(baseline, 3, anchor)
	require.NoError(t, err)
	require.Len(t, points, 3)

	// Period 1: 5% growth, 0.98 confidence.
	assert.Equal(t, int64(10500), points[0].Impressions)
	assert.InDelta(t, 0.98, points[0].Confidence, 1e-9)

	// Period 3: 15% growth (linear, not compounded), 0.94 confidence.
	assert.Equal(t, int64(11500), points[2].Impressions)
	assert.InDelta(t, 0.94, points[2].Confidence, 1e-9)

	assert.Equal(t, int64(840), points[0].Clicks)
	assert.Equal(t, int64(42), points[0].Conversions)
	assert.InDelta(t, 2100.0, points[0].Revenue, 1e-9)
	assert.InDelta(t, 525.0, points[0].Cost, 1e-9)
}

func TestGenerate_ConfidenceFloor(t *testing.T) {
	points, err := Generate(Baseline{Impressions: 100}, 30, anchor)
	require.NoError(t, err)

	// 1 - 0.02*i hits the 0.7 floor at period 15 and stays there.
	assert.InDelta(t, 0.72, points[13].Confidence, 1e-9)
	assert.InDelta(t, 0.7, points[14].Confidence, 1e-9)
	assert.InDelta(t, 0.7, points[29].Confidence, 1e-9)
}

func TestGenerate_CountsFloored(t *testing.T) {
	// 33 * 1.05 = 34.65 -> 34
	points, err := Generate(Baseline{Conversions: 33}, 1, anchor)
	require.NoError(t, err)
	assert.Equal(t, int64(34), points[0].Conversions)
}

func TestGenerate_MoneyRoundedToCents(t *testing.T) {
	// 99.99 * 1.05 = 104.9895 -> 104.99
	points, err := Generate(Baseline{Revenue: 99.99}, 1, anchor)
	require.NoError(t, err)
	assert.InDelta(t, 104.99, points[0].Revenue, 1e-9)
}

func TestGenerate_MonthlyPeriods(t *testing.T) {
	points, err := Generate(Baseline{Impressions: 1}, 2, anchor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), points[0].Period)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), points[1].Period)
}

func TestGenerate_Deterministic(t *testing.T) {
	baseline := Baseline{Impressions: 12345, Revenue: 678.9}
	first, err := Generate(baseline, 6, anchor)
	require.NoError(t, err)
	second, err := Generate(baseline, 6, anchor)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerate_FactorsAttached(t *testing.T) {
	points, err := Generate(Baseline{Impressions: 1}, 2, anchor)
	require.NoError(t, err)
	assert.Equal(t, Factors, points[0].Factors)

	// Each point owns its factor slice: mutating one must not bleed
	// into the others or the package default.
	points[0].Factors[0] = "mutated"
	assert.Equal(t, "seasonal trends", points[1].Factors[0])
	assert.Equal(t, "seasonal trends", Factors[0])
}

func TestGenerate_HorizonValidation(t *testing.T) {
	_, err := Generate(Baseline{}, 0, anchor)
	assert.ErrorIs(t, err, ErrHorizon)

	_, err = Generate(Baseline{}, 61, anchor)
	assert.ErrorIs(t, err, ErrHorizon)
}

func TestBaselineFromHistory(t *testing.T) {
	history := []Baseline{
		{Impressions: 9000, Clicks: 700, Conversions: 30, Revenue: 1800, Cost: 400},
		{Impressions: 11000, Clicks: 900, Conversions: 50, Revenue: 2200, Cost: 600},
	}

	baseline, err := BaselineFromHistory(history)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), baseline.Impressions)
	assert.Equal(t, int64(800), baseline.Clicks)
	assert.Equal(t, int64(40), baseline.Conversions)
	assert.InDelta(t, 2000.0, baseline.Revenue, 1e-9)
	assert.InDelta(t, 500.0, baseline.Cost, 1e-9)
}

func TestBaselineFromHistory_Empty(t *testing.T) {
	_, err := BaselineFromHistory(nil)
	assert.ErrorIs(t, err, ErrNoHistory)
}
