package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liftlab/liftlab/internal/attribution"
	"github.com/liftlab/liftlab/internal/experiment"
)

// setupStore creates a store on a temp database, closed automatically
// when the test finishes.
func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(t.TempDir() + "/liftlab.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newTest(t *testing.T, name string) *experiment.Test {
	t.Helper()

	test, err := experiment.NewTest(experiment.Config{
		Name:              name,
		Type:              experiment.TypeEmail,
		MinimumSampleSize: 500,
		Variants: []experiment.VariantConfig{
			{Name: "control", IsControl: true, TrafficAllocation: 50},
			{Name: "treatment", TrafficAllocation: 50},
		},
	})
	if err != nil {
		t.Fatalf("failed to build test: %v", err)
	}
	return test
}

func TestCreateAndGetTest(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	test := newTest(t, "subject-line")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	got, err := s.GetTest(ctx, "subject-line")
	if err != nil {
		t.Fatalf("failed to get test: %v", err)
	}

	if got.ID != test.ID {
		t.Errorf("id = %q, want %q", got.ID, test.ID)
	}
	if got.Status != experiment.StatusDraft {
		t.Errorf("status = %q, want draft", got.Status)
	}
	if got.ConfidenceLevel != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.ConfidenceLevel)
	}
	if len(got.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(got.Variants))
	}
	if got.Variants[0].Name != "control" || !got.Variants[0].IsControl {
		t.Errorf("variant order or control flag lost: %+v", got.Variants[0])
	}
}

func TestGetTest_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetTest(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveStatusAndCounters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	test := newTest(t, "cta-color")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	if err := test.Transition(experiment.ActionStart); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := s.SaveStatus(ctx, test); err != nil {
		t.Fatalf("failed to save status: %v", err)
	}

	v := test.Variants[1]
	if _, err := s.RecordEvent(ctx, Event{TestID: test.ID, VariantID: v.ID, EventType: EventImpression}); err != nil {
		t.Fatalf("failed to record impression: %v", err)
	}
	if _, err := s.RecordEvent(ctx, Event{TestID: test.ID, VariantID: v.ID, EventType: EventConversion, Revenue: 25.5}); err != nil {
		t.Fatalf("failed to record conversion: %v", err)
	}

	got, err := s.GetTest(ctx, "cta-color")
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if got.Status != experiment.StatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("started_at not persisted")
	}
	if got.Variants[1].Impressions != 1 || got.Variants[1].Conversions != 1 {
		t.Errorf("counters not persisted: %+v", got.Variants[1])
	}
	if got.Variants[1].Revenue != 25.5 {
		t.Errorf("revenue = %v, want 25.5", got.Variants[1].Revenue)
	}
}

func TestRecordEvent_VisitorDedup(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	test := newTest(t, "hero")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	e := Event{
		TestID:    test.ID,
		VariantID: test.Variants[0].ID,
		EventType: EventImpression,
		VisitorID: "visitor-1",
	}

	inserted, err := s.RecordEvent(ctx, e)
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	if !inserted {
		t.Error("first event should insert")
	}

	inserted, err = s.RecordEvent(ctx, e)
	if err != nil {
		t.Fatalf("failed to record duplicate: %v", err)
	}
	if inserted {
		t.Error("duplicate visitor event should be ignored")
	}

	// Anonymous events never dedup.
	anon := Event{TestID: test.ID, VariantID: test.Variants[0].ID, EventType: EventImpression}
	for i := 0; i < 2; i++ {
		inserted, err = s.RecordEvent(ctx, anon)
		if err != nil {
			t.Fatalf("failed to record anonymous: %v", err)
		}
		if !inserted {
			t.Error("anonymous events must always insert")
		}
	}

	events, err := s.GetEvents(ctx, test.ID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want 3", len(events))
	}

	// Counters track the deduplicated event log exactly.
	got, err := s.GetTest(ctx, "hero")
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if got.Variants[0].Impressions != 3 {
		t.Errorf("impressions = %d, want 3", got.Variants[0].Impressions)
	}
}

func TestRecordEvent_RejectedConversionLeavesNoTrace(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	test := newTest(t, "strict")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}
	v := test.Variants[0]

	// A conversion with no impression to back it must fail and leave
	// neither an audit row nor a dedup entry behind.
	conv := Event{TestID: test.ID, VariantID: v.ID, EventType: EventConversion, VisitorID: "visitor-9"}
	if _, err := s.RecordEvent(ctx, conv); !errors.Is(err, experiment.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	events, err := s.GetEvents(ctx, test.ID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("rejected conversion left %d audit rows", len(events))
	}

	// After an impression, the same visitor's conversion goes through.
	if _, err := s.RecordEvent(ctx, Event{TestID: test.ID, VariantID: v.ID, EventType: EventImpression, VisitorID: "visitor-9"}); err != nil {
		t.Fatalf("failed to record impression: %v", err)
	}
	inserted, err := s.RecordEvent(ctx, conv)
	if err != nil {
		t.Fatalf("retried conversion failed: %v", err)
	}
	if !inserted {
		t.Fatal("retried conversion should insert")
	}

	got, err := s.GetTest(ctx, "strict")
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if got.Variants[0].Conversions != 1 {
		t.Errorf("conversions = %d, want 1", got.Variants[0].Conversions)
	}
}

func TestRecordEvent_ConcurrentIncrements(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	test := newTest(t, "stampede")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}
	v := test.Variants[0]

	const workers, perWorker = 16, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := s.RecordEvent(ctx, Event{TestID: test.ID, VariantID: v.ID, EventType: EventImpression}); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent record failed: %v", err)
	}

	got, err := s.GetTest(ctx, "stampede")
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if got.Variants[0].Impressions != workers*perWorker {
		t.Errorf("impressions = %d, want %d", got.Variants[0].Impressions, workers*perWorker)
	}
}

func TestDeleteTest(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	test := newTest(t, "doomed")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}
	if _, err := s.RecordEvent(ctx, Event{TestID: test.ID, VariantID: test.Variants[0].ID, EventType: EventImpression}); err != nil {
		t.Fatalf("failed to record event: %v", err)
	}

	if err := s.DeleteTest(ctx, "doomed"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := s.GetTest(ctx, "doomed"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteTest(ctx, "doomed"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestJourneyRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	touchpoints := []attribution.Touchpoint{
		{Channel: "email", Campaign: "spring", OccurredAt: base},
		{Channel: "social", Campaign: "spring", OccurredAt: base.Add(time.Hour)},
		{Channel: "paid", Campaign: "spring", OccurredAt: base.Add(2 * time.Hour)},
	}

	j, err := s.CreateJourney(ctx, touchpoints)
	if err != nil {
		t.Fatalf("failed to create journey: %v", err)
	}
	if j.ID == "" {
		t.Error("journey id not assigned")
	}

	journeys, err := s.ListJourneys(ctx)
	if err != nil {
		t.Fatalf("failed to list journeys: %v", err)
	}
	if len(journeys) != 1 {
		t.Fatalf("journeys = %d, want 1", len(journeys))
	}
	got := journeys[0].Touchpoints
	if len(got) != 3 {
		t.Fatalf("touchpoints = %d, want 3", len(got))
	}
	for i, tp := range got {
		if tp.Channel != touchpoints[i].Channel {
			t.Errorf("touchpoint %d channel = %q, want %q", i, tp.Channel, touchpoints[i].Channel)
		}
		if !tp.OccurredAt.Equal(touchpoints[i].OccurredAt) {
			t.Errorf("touchpoint %d time = %v, want %v", i, tp.OccurredAt, touchpoints[i].OccurredAt)
		}
	}
}

func TestJourney_EmptyRejected(t *testing.T) {
	s := setupStore(t)

	_, err := s.CreateJourney(context.Background(), nil)
	if err != attribution.ErrEmptyJourney {
		t.Fatalf("expected ErrEmptyJourney, got %v", err)
	}
}

func TestCampaignLedger(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := []CampaignEvent{
		{Campaign: "spring", Kind: KindSpend, Amount: 400, OccurredAt: day},
		{Campaign: "spring", Kind: KindSpend, Amount: 600, OccurredAt: day.AddDate(0, 0, 1)},
		{Campaign: "spring", Kind: KindRevenue, Amount: 3000, OccurredAt: day.AddDate(0, 0, 2)},
		{Campaign: "spring", Kind: KindConversion, Amount: 1, OccurredAt: day.AddDate(0, 0, 2)},
		{Campaign: "spring", Kind: KindLead, Amount: 1, OccurredAt: day.AddDate(0, 0, 2)},
		{Campaign: "winter", Kind: KindSpend, Amount: 999, OccurredAt: day},
	}
	for _, e := range events {
		if err := s.AddCampaignEvent(ctx, e); err != nil {
			t.Fatalf("failed to add ledger event: %v", err)
		}
	}

	agg, err := s.CampaignAggregate(ctx, "spring", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("failed to aggregate: %v", err)
	}
	if agg.TotalSpent != 1000 {
		t.Errorf("spent = %v, want 1000", agg.TotalSpent)
	}
	if agg.TotalRevenue != 3000 {
		t.Errorf("revenue = %v, want 3000", agg.TotalRevenue)
	}
	if agg.TotalConversions != 1 || agg.TotalLeads != 1 {
		t.Errorf("conversions/leads = %d/%d, want 1/1", agg.TotalConversions, agg.TotalLeads)
	}

	// A single ledger row can carry a whole batch: amount is the count
	// for lead and conversion kinds.
	err = s.AddCampaignEvent(ctx, CampaignEvent{
		Campaign: "spring", Kind: KindConversion, Amount: 30, OccurredAt: day.AddDate(0, 0, 3),
	})
	if err != nil {
		t.Fatalf("failed to add batch conversion: %v", err)
	}
	agg, err = s.CampaignAggregate(ctx, "spring", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("failed to aggregate: %v", err)
	}
	if agg.TotalConversions != 31 {
		t.Errorf("conversions = %d, want 31", agg.TotalConversions)
	}

	// Date bounds exclude the second spend day.
	agg, err = s.CampaignAggregate(ctx, "spring", day, day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("failed to aggregate with range: %v", err)
	}
	if agg.TotalSpent != 400 {
		t.Errorf("ranged spent = %v, want 400", agg.TotalSpent)
	}

	campaigns, err := s.ListCampaigns(ctx)
	if err != nil {
		t.Fatalf("failed to list campaigns: %v", err)
	}
	if len(campaigns) != 2 || campaigns[0] != "spring" || campaigns[1] != "winter" {
		t.Errorf("campaigns = %v, want [spring winter]", campaigns)
	}

	amounts, err := s.CampaignAmounts(ctx, "spring", KindSpend, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("failed to query amounts: %v", err)
	}
	if len(amounts) != 2 || amounts[0] != 400 || amounts[1] != 600 {
		t.Errorf("amounts = %v, want [400 600]", amounts)
	}
}

func TestAddCampaignEvent_UnknownKind(t *testing.T) {
	s := setupStore(t)

	err := s.AddCampaignEvent(context.Background(), CampaignEvent{Campaign: "x", Kind: "refund"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
