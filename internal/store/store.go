package store

import (
	"context"
	"errors"
	"time"

	"github.com/liftlab/liftlab/internal/attribution"
	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/performance"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Event is one audit row in the append-only event log.
type Event struct {
	ID        int64
	TestID    string
	VariantID string
	EventType string // "impression" or "conversion"
	VisitorID string // optional; dedup key when set
	Revenue   float64
	CreatedAt time.Time
}

// Event types accepted by the beacon and CLI.
const (
	EventImpression = "impression"
	EventConversion = "conversion"
)

// Journey is a stored customer journey: an ordered list of touchpoints
// that ended in a conversion.
type Journey struct {
	ID          string
	Touchpoints []attribution.Touchpoint
	CreatedAt   time.Time
}

// CampaignEvent is one row in the campaign spend/revenue ledger. For
// spend and revenue the amount is money; for lead and conversion it is
// the count, so one row can carry a whole batch.
type CampaignEvent struct {
	ID         int64
	Campaign   string
	Kind       string // spend, revenue, lead, conversion
	Amount     float64
	OccurredAt time.Time
}

// Ledger kinds.
const (
	KindSpend      = "spend"
	KindRevenue    = "revenue"
	KindLead       = "lead"
	KindConversion = "conversion"
)

// Store is the persistence boundary for the engine's collaborators.
type Store interface {
	// Test aggregate
	CreateTest(ctx context.Context, t *experiment.Test) error
	GetTest(ctx context.Context, name string) (*experiment.Test, error)
	ListTests(ctx context.Context) ([]*experiment.Test, error)
	SaveStatus(ctx context.Context, t *experiment.Test) error
	DeleteTest(ctx context.Context, name string) error

	// Event audit log + counters, applied atomically
	RecordEvent(ctx context.Context, e Event) (bool, error)
	GetEvents(ctx context.Context, testID string) ([]Event, error)

	// Attribution journeys
	CreateJourney(ctx context.Context, touchpoints []attribution.Touchpoint) (*Journey, error)
	ListJourneys(ctx context.Context) ([]Journey, error)

	// Campaign ledger
	AddCampaignEvent(ctx context.Context, e CampaignEvent) error
	CampaignAggregate(ctx context.Context, campaign string, from, to time.Time) (performance.CampaignAggregate, error)
	ListCampaigns(ctx context.Context) ([]string, error)
	CampaignAmounts(ctx context.Context, campaign, kind string, from, to time.Time) ([]float64, error)

	// Lifecycle
	Close() error
}
