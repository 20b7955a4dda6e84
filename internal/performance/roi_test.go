package performance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_BasicMetrics(t *testing.T) {
	rec := Compute(CampaignAggregate{
		Campaign:         "spring-launch",
		TotalSpent:       1000,
		TotalRevenue:     3000,
		TotalConversions: 50,
		TotalLeads:       200,
	})

	assert.InDelta(t, 200.0, rec.ROI, 1e-9)   // (3000-1000)/1000 * 100
	assert.InDelta(t, 3.0, rec.ROAS, 1e-9)    // 3000/1000
	assert.InDelta(t, 20.0, rec.CPA, 1e-9)    // 1000/50
	assert.InDelta(t, 5.0, rec.CPL, 1e-9)     // 1000/200
	assert.InDelta(t, 60.0, rec.LTV, 1e-9)    // 3000/50
	assert.InDelta(t, 1.0/3.0, rec.PaybackPeriod, 1e-9)
}

func TestCompute_ZeroSpend(t *testing.T) {
	rec := Compute(CampaignAggregate{
		Campaign:         "organic",
		TotalRevenue:     500,
		TotalConversions: 10,
	})

	assert.Zero(t, rec.ROI)
	assert.Zero(t, rec.ROAS)
	assert.Zero(t, rec.CPA)
	assert.Zero(t, rec.CPL)
	assert.InDelta(t, 50.0, rec.LTV, 1e-9)
	assert.Zero(t, rec.PaybackPeriod)
}

func TestCompute_AllZeroNeverNaN(t *testing.T) {
	rec := Compute(CampaignAggregate{Campaign: "empty"})

	for name, v := range map[string]float64{
		"roi": rec.ROI, "roas": rec.ROAS, "cpa": rec.CPA,
		"cpl": rec.CPL, "ltv": rec.LTV, "payback": rec.PaybackPeriod,
	} {
		assert.False(t, math.IsNaN(v), "%s is NaN", name)
		assert.False(t, math.IsInf(v, 0), "%s is Inf", name)
		assert.Zero(t, v, name)
	}
}

func TestRank_DescendingROI(t *testing.T) {
	records := []Record{
		{Campaign: "a", ROI: 50},
		{Campaign: "b", ROI: 200},
		{Campaign: "c", ROI: -20},
		{Campaign: "d", ROI: 200},
	}

	ranked := Rank(records)

	assert.Equal(t, "b", ranked[0].Campaign)
	assert.Equal(t, "d", ranked[1].Campaign, "equal ROI keeps input order")
	assert.Equal(t, "a", ranked[2].Campaign)
	assert.Equal(t, "c", ranked[3].Campaign)

	// Input untouched.
	assert.Equal(t, "a", records[0].Campaign)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{100, 200, 300, 400})

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 1000.0, s.Total, 1e-9)
	assert.InDelta(t, 250.0, s.Mean, 1e-9)
	assert.InDelta(t, 250.0, s.Median, 1e-9)
	assert.InDelta(t, 400.0, s.Max, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
