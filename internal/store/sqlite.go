package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/liftlab/liftlab/internal/attribution"
	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/performance"
)

// SQLiteStore persists the engine's aggregates in an embedded SQLite
// database (WAL mode, single file).
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tests (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    confidence_level REAL NOT NULL,
    minimum_sample_size INTEGER NOT NULL,
    primary_metric TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    started_at INTEGER,
    completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tests_status ON tests(status);

CREATE TABLE IF NOT EXISTS variants (
    id TEXT PRIMARY KEY,
    test_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    is_control INTEGER NOT NULL DEFAULT 0,
    traffic_allocation REAL NOT NULL,
    impressions INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    revenue REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_variants_test ON variants(test_id, position);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    test_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    visitor_id TEXT NOT NULL DEFAULT '',
    revenue REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_events_test ON events(test_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedup
    ON events(test_id, visitor_id, event_type) WHERE visitor_id != '';

CREATE TABLE IF NOT EXISTS journeys (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS touchpoints (
    journey_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    channel TEXT NOT NULL,
    campaign TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    PRIMARY KEY (journey_id, position),
    FOREIGN KEY (journey_id) REFERENCES journeys(id)
);

CREATE TABLE IF NOT EXISTS campaign_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign TEXT NOT NULL,
    kind TEXT NOT NULL,
    amount REAL NOT NULL,
    occurred_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_campaign_events ON campaign_events(campaign, kind, occurred_at);
`

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite allows one writer at a time; funneling every statement
	// through a single connection keeps concurrent writers queued
	// instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateTest(ctx context.Context, t *experiment.Test) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, name, type, status, confidence_level, minimum_sample_size, primary_metric, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.Type), string(t.Status), t.ConfidenceLevel, t.MinimumSampleSize,
		t.PrimaryMetric, t.CreatedAt.Unix(), nullableTime(t.StartedAt), nullableTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert test: %w", err)
	}

	for i, v := range t.Variants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO variants (id, test_id, position, name, is_control, traffic_allocation, impressions, conversions, revenue)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, t.ID, i, v.Name, boolToInt(v.IsControl), v.TrafficAllocation,
			v.Impressions, v.Conversions, v.Revenue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTest(ctx context.Context, name string) (*experiment.Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, status, confidence_level, minimum_sample_size, primary_metric, created_at, started_at, completed_at
		 FROM tests WHERE name = ?`, name)
	return s.scanTest(ctx, row)
}

func (s *SQLiteStore) scanTest(ctx context.Context, row *sql.Row) (*experiment.Test, error) {
	var t experiment.Test
	var testType, status string
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(&t.ID, &t.Name, &testType, &status, &t.ConfidenceLevel,
		&t.MinimumSampleSize, &t.PrimaryMetric, &createdAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	t.Type = experiment.Type(testType)
	t.Status = experiment.Status(status)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)

	if err := s.loadVariants(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) loadVariants(ctx context.Context, t *experiment.Test) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, is_control, traffic_allocation, impressions, conversions, revenue
		 FROM variants WHERE test_id = ? ORDER BY position`, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v experiment.Variant
		var isControl int
		if err := rows.Scan(&v.ID, &v.Name, &isControl, &v.TrafficAllocation,
			&v.Impressions, &v.Conversions, &v.Revenue); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		v.IsControl = isControl != 0
		t.Variants = append(t.Variants, &v)
	}
	return rows.Err()
}

func (s *SQLiteStore) ListTests(ctx context.Context) ([]*experiment.Test, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM tests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan test name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var tests []*experiment.Test
	for _, name := range names {
		t, err := s.GetTest(ctx, name)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, nil
}

func (s *SQLiteStore) SaveStatus(ctx context.Context, t *experiment.Test) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tests SET status = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		string(t.Status), nullableTime(t.StartedAt), nullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update test status: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStore) DeleteTest(ctx context.Context, name string) error {
	t, err := s.GetTest(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE test_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM variants WHERE test_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to delete variants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RecordEvent appends one audit row and bumps the variant's counters in
// a single transaction. The dedup index decides whether the event counts:
// a repeat from the same visitor commits nothing and returns false. A
// conversion that would exceed impressions rolls the whole thing back,
// audit row included. Increments run as relative SQL updates so
// concurrent writers never overwrite each other's counts.
func (s *SQLiteStore) RecordEvent(ctx context.Context, e Event) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (test_id, variant_id, event_type, visitor_id, revenue, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.TestID, e.VariantID, e.EventType, e.VisitorID, e.Revenue, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to record event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	switch e.EventType {
	case EventImpression:
		result, err = tx.ExecContext(ctx,
			`UPDATE variants SET impressions = impressions + 1 WHERE id = ?`, e.VariantID)
	case EventConversion:
		result, err = tx.ExecContext(ctx,
			`UPDATE variants SET conversions = conversions + 1, revenue = revenue + ?
			 WHERE id = ? AND conversions < impressions`, e.Revenue, e.VariantID)
	default:
		return false, fmt.Errorf("unknown event type %q", e.EventType)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update counters: %w", err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if e.EventType == EventConversion {
			return false, fmt.Errorf("%w: conversion would exceed impressions for variant %s",
				experiment.ErrInvariant, e.VariantID)
		}
		return false, fmt.Errorf("%w: %s", experiment.ErrVariantNotFound, e.VariantID)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit event: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) GetEvents(ctx context.Context, testID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, test_id, variant_id, event_type, visitor_id, revenue, created_at
		 FROM events WHERE test_id = ? ORDER BY created_at DESC`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.TestID, &e.VariantID, &e.EventType, &e.VisitorID, &e.Revenue, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) CreateJourney(ctx context.Context, touchpoints []attribution.Touchpoint) (*Journey, error) {
	if len(touchpoints) == 0 {
		return nil, attribution.ErrEmptyJourney
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	j := &Journey{
		ID:          uuid.NewString(),
		Touchpoints: touchpoints,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO journeys (id, created_at) VALUES (?, ?)`,
		j.ID, j.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("failed to insert journey: %w", err)
	}

	for i, tp := range touchpoints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO touchpoints (journey_id, position, channel, campaign, occurred_at)
			 VALUES (?, ?, ?, ?, ?)`,
			j.ID, i, tp.Channel, tp.Campaign, tp.OccurredAt.Unix()); err != nil {
			return nil, fmt.Errorf("failed to insert touchpoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return j, nil
}

func (s *SQLiteStore) ListJourneys(ctx context.Context) ([]Journey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at FROM journeys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}
	defer rows.Close()

	var journeys []Journey
	for rows.Next() {
		var j Journey
		var createdAt int64
		if err := rows.Scan(&j.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}
		j.CreatedAt = time.Unix(createdAt, 0).UTC()
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range journeys {
		tps, err := s.loadTouchpoints(ctx, journeys[i].ID)
		if err != nil {
			return nil, err
		}
		journeys[i].Touchpoints = tps
	}
	return journeys, nil
}

func (s *SQLiteStore) loadTouchpoints(ctx context.Context, journeyID string) ([]attribution.Touchpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, campaign, occurred_at FROM touchpoints
		 WHERE journey_id = ? ORDER BY position`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load touchpoints: %w", err)
	}
	defer rows.Close()

	var tps []attribution.Touchpoint
	for rows.Next() {
		var tp attribution.Touchpoint
		var occurredAt int64
		if err := rows.Scan(&tp.Channel, &tp.Campaign, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan touchpoint: %w", err)
		}
		tp.OccurredAt = time.Unix(occurredAt, 0).UTC()
		tps = append(tps, tp)
	}
	return tps, rows.Err()
}

func (s *SQLiteStore) AddCampaignEvent(ctx context.Context, e CampaignEvent) error {
	switch e.Kind {
	case KindSpend, KindRevenue, KindLead, KindConversion:
	default:
		return fmt.Errorf("unknown campaign event kind %q", e.Kind)
	}

	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_events (campaign, kind, amount, occurred_at) VALUES (?, ?, ?, ?)`,
		e.Campaign, e.Kind, e.Amount, occurredAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert campaign event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CampaignAggregate(ctx context.Context, campaign string, from, to time.Time) (performance.CampaignAggregate, error) {
	agg := performance.CampaignAggregate{Campaign: campaign, From: from, To: to}

	lo, hi := rangeBounds(from, to)
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'spend' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN kind = 'revenue' THEN amount END), 0),
			CAST(COALESCE(SUM(CASE WHEN kind = 'conversion' THEN amount END), 0) AS INTEGER),
			CAST(COALESCE(SUM(CASE WHEN kind = 'lead' THEN amount END), 0) AS INTEGER)
		FROM campaign_events
		WHERE campaign = ? AND occurred_at BETWEEN ? AND ?`,
		campaign, lo, hi)

	if err := row.Scan(&agg.TotalSpent, &agg.TotalRevenue, &agg.TotalConversions, &agg.TotalLeads); err != nil {
		return agg, fmt.Errorf("failed to aggregate campaign: %w", err)
	}
	return agg, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT campaign FROM campaign_events ORDER BY campaign`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *SQLiteStore) CampaignAmounts(ctx context.Context, campaign, kind string, from, to time.Time) ([]float64, error) {
	lo, hi := rangeBounds(from, to)
	rows, err := s.db.QueryContext(ctx,
		`SELECT amount FROM campaign_events
		 WHERE campaign = ? AND kind = ? AND occurred_at BETWEEN ? AND ?
		 ORDER BY occurred_at`, campaign, kind, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	var amounts []float64
	for rows.Next() {
		var a float64
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan amount: %w", err)
		}
		amounts = append(amounts, a)
	}
	return amounts, rows.Err()
}

// rangeBounds converts an optional date range to inclusive unix bounds.
func rangeBounds(from, to time.Time) (int64, int64) {
	lo := int64(0)
	if !from.IsZero() {
		lo = from.Unix()
	}
	hi := int64(1<<62 - 1)
	if !to.IsZero() {
		hi = to.Unix()
	}
	return lo, hi
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
