// Package recommend classifies a running test into next actions based on
// its significance result, economics, and how long it has been running.
// Triggers are a closed set so every rule branch is explicit.
package recommend

import (
	"fmt"
	"time"

	"github.com/liftlab/liftlab/internal/performance"
	"github.com/liftlab/liftlab/internal/stats"
)

// Action is what the engine suggests doing with the test.
type Action string

const (
	ActionDeclareWinner         Action = "declare_winner"
	ActionIncreaseSample        Action = "increase_sample"
	ActionTerminateInconclusive Action = "terminate_inconclusive"
	ActionOptimizeVariant       Action = "optimize_variant"
)

// Priority orders recommendations for display.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Config tunes the classifier. Impact and effort are caller-supplied
// heuristics passed through to the output untouched.
type Config struct {
	// MaxDuration is the ceiling after which an inconclusive test with a
	// full sample should be terminated.
	MaxDuration time.Duration
	// ROIFloorRatio flags a variant whose ROI falls below this fraction
	// of the best variant's ROI (e.g. 0.5 for "under half the best").
	ROIFloorRatio float64
	// Impact and Effort scores (0-100) attached to each recommendation.
	Impact int
	Effort int
}

// DefaultConfig mirrors the thresholds used by the reporting layer.
func DefaultConfig() Config {
	return Config{
		MaxDuration:   30 * 24 * time.Hour,
		ROIFloorRatio: 0.5,
		Impact:        70,
		Effort:        30,
	}
}

// Input is everything the classifier looks at, supplied as plain values.
type Input struct {
	TestName          string
	Significance      stats.Result
	VariantROI        []performance.Record
	Elapsed           time.Duration
	SampleSize        int64
	MinimumSampleSize int64
	ConfidenceLevel   float64
}

// Recommendation is one suggested action with its rationale.
type Recommendation struct {
	Action    Action   `json:"action"`
	Priority  Priority `json:"priority"`
	Impact    int      `json:"impact"`
	Effort    int      `json:"effort"`
	Reasoning string   `json:"reasoning"`
}

// Evaluate runs every rule and returns the recommendations that fired,
// highest priority first. The rules are independent: a significant test
// with a lagging variant gets both the winner call and the optimize hint.
func Evaluate(in Input, cfg Config) []Recommendation {
	var recs []Recommendation

	if in.Significance.IsSignificant {
		recs = append(recs, Recommendation{
			Action:   ActionDeclareWinner,
			Priority: PriorityHigh,
			Impact:   cfg.Impact,
			Effort:   cfg.Effort,
			Reasoning: fmt.Sprintf(
				"variant %s leads with p=%.4f at the %.0f%% confidence level; terminate the test and declare the winner",
				in.Significance.Winner, in.Significance.PValue, in.ConfidenceLevel*100),
		})
	} else if in.SampleSize < in.MinimumSampleSize {
		recs = append(recs, Recommendation{
			Action:   ActionIncreaseSample,
			Priority: PriorityMedium,
			Impact:   cfg.Impact,
			Effort:   cfg.Effort,
			Reasoning: fmt.Sprintf(
				"no significant difference yet and only %d of %d minimum samples collected; extend the test",
				in.SampleSize, in.MinimumSampleSize),
		})
	} else if in.Elapsed > cfg.MaxDuration {
		recs = append(recs, Recommendation{
			Action:   ActionTerminateInconclusive,
			Priority: PriorityMedium,
			Impact:   cfg.Impact,
			Effort:   cfg.Effort,
			Reasoning: fmt.Sprintf(
				"sample minimum reached and %s elapsed without significance; terminate as inconclusive",
				in.Elapsed.Round(time.Hour)),
		})
	}

	if rec, ok := laggingVariant(in.VariantROI, cfg); ok {
		recs = append(recs, rec)
	}

	return recs
}

// laggingVariant flags any variant whose ROI falls materially below the
// best performer. Negative-ROI bests are skipped: there is no meaningful
// floor below a losing campaign.
func laggingVariant(records []performance.Record, cfg Config) (Recommendation, bool) {
	if len(records) < 2 || cfg.ROIFloorRatio <= 0 {
		return Recommendation{}, false
	}

	best := records[0]
	for _, r := range records[1:] {
		if r.ROI > best.ROI {
			best = r
		}
	}
	if best.ROI <= 0 {
		return Recommendation{}, false
	}

	floor := best.ROI * cfg.ROIFloorRatio
	for _, r := range records {
		if r.Campaign == best.Campaign {
			continue
		}
		if r.ROI < floor {
			return Recommendation{
				Action:   ActionOptimizeVariant,
				Priority: PriorityLow,
				Impact:   cfg.Impact,
				Effort:   cfg.Effort,
				Reasoning: fmt.Sprintf(
					"%s returns %.1f%% ROI versus %.1f%% for %s (below %.0f%% of the leader); optimize or drop it",
					r.Campaign, r.ROI, best.ROI, best.Campaign, cfg.ROIFloorRatio*100),
			}, true
		}
	}

	return Recommendation{}, false
}
