package experiment

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liftlab/liftlab/internal/stats"
)

// Type categorizes what kind of asset a test experiments on.
type Type string

const (
	TypeEmail       Type = "email"
	TypeContent     Type = "content"
	TypeSocial      Type = "social"
	TypePaid        Type = "paid"
	TypeLandingPage Type = "landing_page"
	TypeCTA         Type = "cta"
)

// Status is the lifecycle state of a test.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Action is a lifecycle transition request.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
)

// transitions is the full legal state machine. Completed is terminal.
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionStart: StatusActive,
	},
	StatusActive: {
		ActionPause:    StatusPaused,
		ActionComplete: StatusCompleted,
	},
	StatusPaused: {
		ActionResume:   StatusActive,
		ActionComplete: StatusCompleted,
	},
}

// allocationTolerance is the rounding slack allowed when traffic
// allocations are checked against 100%.
const allocationTolerance = 0.01

// Variant is one arm of a test. Counters are owned by the parent Test and
// mutated only through its Record methods.
type Variant struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	IsControl         bool    `json:"is_control"`
	TrafficAllocation float64 `json:"traffic_allocation"`
	Impressions       int64   `json:"impressions"`
	Conversions       int64   `json:"conversions"`
	Revenue           float64 `json:"revenue"`
}

// Rate returns the variant's conversion rate as a percentage.
func (v *Variant) Rate() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Impressions) * 100
}

func (v *Variant) counts() stats.VariantCounts {
	// Variants are addressed by name everywhere outside the store, so
	// the comparison labels use names too.
	return stats.VariantCounts{ID: v.Name, Impressions: v.Impressions, Conversions: v.Conversions}
}

// VariantConfig describes a variant at creation time.
type VariantConfig struct {
	Name              string
	IsControl         bool
	TrafficAllocation float64
}

// Config describes a test at creation time.
type Config struct {
	Name              string
	Type              Type
	ConfidenceLevel   float64 // defaults to 0.95
	MinimumSampleSize int64
	PrimaryMetric     string // defaults to "conversion_rate"
	Variants          []VariantConfig
}

// Test is the experiment aggregate: identity, lifecycle status, and the
// only mutable shared state in the engine (its variants' counters).
// Counter mutation is serialized by an internal mutex; all analytical
// reads work on a snapshot taken under the same lock.
type Test struct {
	mu sync.Mutex

	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Type              Type       `json:"type"`
	Status            Status     `json:"status"`
	ConfidenceLevel   float64    `json:"confidence_level"`
	MinimumSampleSize int64      `json:"minimum_sample_size"`
	PrimaryMetric     string     `json:"primary_metric"`
	Variants          []*Variant `json:"variants"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// NewTest validates the configuration and builds a draft test.
func NewTest(cfg Config) (*Test, error) {
	if cfg.Name == "" {
		return nil, validationErr("name", "must not be empty")
	}

	switch cfg.Type {
	case TypeEmail, TypeContent, TypeSocial, TypePaid, TypeLandingPage, TypeCTA:
	default:
		return nil, validationErr("type", "unknown test type %q", cfg.Type)
	}

	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = 0.95
	}
	switch cfg.ConfidenceLevel {
	case 0.90, 0.95, 0.99:
	default:
		return nil, validationErr("confidence_level", "must be 0.90, 0.95 or 0.99, got %v", cfg.ConfidenceLevel)
	}

	if cfg.MinimumSampleSize <= 0 {
		return nil, validationErr("minimum_sample_size", "must be positive, got %d", cfg.MinimumSampleSize)
	}

	if cfg.PrimaryMetric == "" {
		cfg.PrimaryMetric = "conversion_rate"
	}

	if len(cfg.Variants) < 2 {
		return nil, validationErr("variants", "need at least 2 variants, got %d", len(cfg.Variants))
	}

	controls := 0
	totalAllocation := 0.0
	seen := make(map[string]bool, len(cfg.Variants))
	for _, vc := range cfg.Variants {
		if vc.Name == "" {
			return nil, validationErr("variants", "variant name must not be empty")
		}
		if seen[vc.Name] {
			return nil, validationErr("variants", "duplicate variant name %q", vc.Name)
		}
		seen[vc.Name] = true
		if vc.TrafficAllocation < 0 || vc.TrafficAllocation > 100 {
			return nil, validationErr("variants", "allocation %v for %q outside 0-100", vc.TrafficAllocation, vc.Name)
		}
		if vc.IsControl {
			controls++
		}
		totalAllocation += vc.TrafficAllocation
	}
	if controls != 1 {
		return nil, validationErr("variants", "exactly one control required, got %d", controls)
	}
	if math.Abs(totalAllocation-100) > allocationTolerance {
		return nil, validationErr("variants", "traffic allocations sum to %v, want 100", totalAllocation)
	}

	t := &Test{
		ID:                uuid.NewString(),
		Name:              cfg.Name,
		Type:              cfg.Type,
		Status:            StatusDraft,
		ConfidenceLevel:   cfg.ConfidenceLevel,
		MinimumSampleSize: cfg.MinimumSampleSize,
		PrimaryMetric:     cfg.PrimaryMetric,
		CreatedAt:         time.Now().UTC(),
	}
	for _, vc := range cfg.Variants {
		t.Variants = append(t.Variants, &Variant{
			ID:                uuid.NewString(),
			Name:              vc.Name,
			IsControl:         vc.IsControl,
			TrafficAllocation: vc.TrafficAllocation,
		})
	}

	return t, nil
}

// Transition applies a lifecycle action. Illegal pairs fail with
// ErrInvalidTransition and leave the test untouched.
func (t *Test) Transition(action Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, ok := transitions[t.Status][action]
	if !ok {
		return fmt.Errorf("%w: cannot %s a %s test", ErrInvalidTransition, action, t.Status)
	}

	now := time.Now().UTC()
	switch next {
	case StatusActive:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case StatusCompleted:
		t.CompletedAt = &now
	}
	t.Status = next
	return nil
}

// RecordImpression increments the impression counter of one variant.
func (t *Test) RecordImpression(variantID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.activeVariant(variantID)
	if err != nil {
		return err
	}
	v.Impressions++
	return nil
}

// RecordConversion increments the conversion counter of one variant and
// accumulates revenue. A conversion requires a prior impression, and
// revenue must not be negative; violations reject the whole event.
func (t *Test) RecordConversion(variantID string, revenue float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.activeVariant(variantID)
	if err != nil {
		return err
	}
	if v.Conversions+1 > v.Impressions {
		return fmt.Errorf("%w: conversions would exceed impressions for variant %s", ErrInvariant, v.Name)
	}
	if revenue < 0 {
		return fmt.Errorf("%w: negative revenue %v", ErrInvariant, revenue)
	}
	v.Conversions++
	v.Revenue += revenue
	return nil
}

// activeVariant resolves a variant for mutation. Callers hold t.mu.
func (t *Test) activeVariant(variantID string) (*Variant, error) {
	if t.Status != StatusActive {
		return nil, fmt.Errorf("%w: status is %s", ErrTestNotActive, t.Status)
	}
	for _, v := range t.Variants {
		if v.ID == variantID {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variantID)
}

// Control returns the control variant.
func (t *Test) Control() *Variant {
	for _, v := range t.Variants {
		if v.IsControl {
			return v
		}
	}
	return nil
}

// Leading returns the variant with the highest conversion rate. Ties go
// to the earlier variant in declaration order.
func (t *Test) Leading() *Variant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leadingLocked()
}

func (t *Test) leadingLocked() *Variant {
	var best *Variant
	for _, v := range t.Variants {
		if best == nil || v.Rate() > best.Rate() {
			best = v
		}
	}
	return best
}

// SampleSize is the total impressions across all variants.
func (t *Test) SampleSize() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total int64
	for _, v := range t.Variants {
		total += v.Impressions
	}
	return total
}

// ReachedMinimumSample reports whether the test has collected at least
// its configured minimum sample.
func (t *Test) ReachedMinimumSample() bool {
	return t.SampleSize() >= t.MinimumSampleSize
}

// Significance compares the control against the strongest challenger at
// the test's configured confidence level. It computes from a snapshot
// taken under the counter lock and never caches, so a fresh call always
// reflects current counters.
func (t *Test) Significance() (stats.Result, error) {
	t.mu.Lock()
	control := t.Control()
	if control == nil {
		t.mu.Unlock()
		return stats.Result{}, fmt.Errorf("%w: no control variant", ErrVariantNotFound)
	}

	var challenger *Variant
	for _, v := range t.Variants {
		if v.IsControl {
			continue
		}
		if challenger == nil || v.Rate() > challenger.Rate() {
			challenger = v
		}
	}
	controlCounts := control.counts()
	var challengerCounts stats.VariantCounts
	if challenger != nil {
		challengerCounts = challenger.counts()
	}
	confidence := t.ConfidenceLevel
	t.mu.Unlock()

	if challenger == nil {
		return stats.Result{}, fmt.Errorf("%w: no challenger variant", ErrVariantNotFound)
	}

	return stats.Compare(controlCounts, challengerCounts, confidence)
}

// Elapsed is the running duration of the test: start to completion, or
// start to now for tests still in flight. Zero if never started.
func (t *Test) Elapsed(now time.Time) time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := now
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}
