// Package performance derives campaign efficiency metrics (ROI, ROAS,
// CPA, CPL, LTV, payback) from aggregated spend and revenue. Every ratio
// tolerates a zero denominator by resolving to 0: a campaign with no
// spend reports 0% ROI rather than an error, because missing data is not
// a fault condition at this layer.
package performance

import (
	"sort"
	"time"

	mstats "github.com/montanaflynn/stats"
)

// CampaignAggregate is the raw input for one campaign over a date range.
type CampaignAggregate struct {
	Campaign         string    `json:"campaign"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	TotalSpent       float64   `json:"total_spent"`
	TotalRevenue     float64   `json:"total_revenue"`
	TotalConversions int64     `json:"total_conversions"`
	TotalLeads       int64     `json:"total_leads"`
}

// Record carries the derived metrics for one campaign.
type Record struct {
	Campaign         string    `json:"campaign"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	TotalSpent       float64   `json:"total_spent"`
	TotalRevenue     float64   `json:"total_revenue"`
	TotalConversions int64     `json:"total_conversions"`
	ROI              float64   `json:"roi"`  // percent
	ROAS             float64   `json:"roas"` // revenue per unit spend
	CPA              float64   `json:"cpa"`
	CPL              float64   `json:"cpl"`
	LTV              float64   `json:"ltv"`
	// PaybackPeriod is spend divided by revenue. It is a dimensionless
	// ratio, not a calendar duration; the name is kept for report
	// compatibility with the system this replaces.
	PaybackPeriod float64 `json:"payback_period"`
}

// Compute derives the full metric record for one campaign.
func Compute(agg CampaignAggregate) Record {
	return Record{
		Campaign:         agg.Campaign,
		From:             agg.From,
		To:               agg.To,
		TotalSpent:       agg.TotalSpent,
		TotalRevenue:     agg.TotalRevenue,
		TotalConversions: agg.TotalConversions,
		ROI:              safeDiv(agg.TotalRevenue-agg.TotalSpent, agg.TotalSpent) * 100,
		ROAS:             safeDiv(agg.TotalRevenue, agg.TotalSpent),
		CPA:              safeDiv(agg.TotalSpent, float64(agg.TotalConversions)),
		CPL:              safeDiv(agg.TotalSpent, float64(agg.TotalLeads)),
		LTV:              safeDiv(agg.TotalRevenue, float64(agg.TotalConversions)),
		PaybackPeriod:    safeDiv(agg.TotalSpent, agg.TotalRevenue),
	}
}

// Rank orders records by descending ROI for top-performer reporting. The
// input is not modified.
func Rank(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ROI > out[j].ROI
	})
	return out
}

// Summary describes a series of spend or revenue amounts.
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summarize reduces an event amount series to its headline numbers.
// Empty input yields a zero Summary.
func Summarize(amounts []float64) Summary {
	if len(amounts) == 0 {
		return Summary{}
	}

	total, _ := mstats.Sum(amounts)
	mean, _ := mstats.Mean(amounts)
	median, _ := mstats.Median(amounts)
	max, _ := mstats.Max(amounts)

	return Summary{
		Count:  len(amounts),
		Total:  total,
		Mean:   mean,
		Median: median,
		Max:    max,
	}
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
