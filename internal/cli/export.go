package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export raw event data",
	Long: `Export a test's raw event log in CSV or JSON format.

Examples:
  liftlab export hero --format csv > hero-data.csv
  liftlab export hero --format json > hero-data.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	name := args[0]

	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		test, err := s.GetTest(ctx, name)
		if err != nil {
			return notFound(err, name)
		}

		events, err := s.GetEvents(ctx, test.ID)
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		// Events carry variant IDs; readers want names.
		variantNames := make(map[string]string, len(test.Variants))
		for _, v := range test.Variants {
			variantNames[v.ID] = v.Name
		}

		if exportFormat == "csv" {
			return exportCSV(events, variantNames)
		}
		return exportJSON(test.Name, events, variantNames)
	})
}

func exportCSV(events []store.Event, variantNames map[string]string) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "variant", "event_type", "visitor_id", "revenue"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.CreatedAt.Unix(), 10),
			variantNames[e.VariantID],
			e.EventType,
			e.VisitorID,
			strconv.FormatFloat(e.Revenue, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonEvent struct {
	Timestamp int64   `json:"timestamp"`
	Variant   string  `json:"variant"`
	EventType string  `json:"event_type"`
	VisitorID string  `json:"visitor_id,omitempty"`
	Revenue   float64 `json:"revenue,omitempty"`
}

type jsonExport struct {
	Test   string      `json:"test"`
	Events []jsonEvent `json:"events"`
}

func exportJSON(testName string, events []store.Event, variantNames map[string]string) error {
	out := jsonExport{Test: testName, Events: make([]jsonEvent, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, jsonEvent{
			Timestamp: e.CreatedAt.Unix(),
			Variant:   variantNames[e.VariantID],
			EventType: e.EventType,
			VisitorID: e.VisitorID,
			Revenue:   e.Revenue,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	return nil
}
