package cli

import (
	"context"
	"fmt"

	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRecordCmd())
}

func newRecordCmd() *cobra.Command {
	var (
		count     int
		revenue   float64
		visitorID string
	)

	cmd := &cobra.Command{
		Use:   "record <test> <variant> <impression|conversion>",
		Short: "Record events against a variant",
		Long: `Record impressions or conversions by hand. The test must be active.

Examples:
  liftlab record hero control impression --count 100
  liftlab record hero challenger conversion --revenue 29.99
  liftlab record hero control impression --visitor v-123`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			testName, variantName, eventType := args[0], args[1], args[2]

			if eventType != store.EventImpression && eventType != store.EventConversion {
				return fmt.Errorf("event must be 'impression' or 'conversion', got %q", eventType)
			}
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			if count > 1 && visitorID != "" {
				return fmt.Errorf("--visitor only makes sense with a single event")
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, err := s.GetTest(ctx, testName)
				if err != nil {
					return notFound(err, testName)
				}

				var variant string
				for _, v := range test.Variants {
					if v.Name == variantName {
						variant = v.ID
					}
				}
				if variant == "" {
					return fmt.Errorf("variant '%s' not found in test '%s'", variantName, testName)
				}
				if test.Status != experiment.StatusActive {
					return fmt.Errorf("test '%s' is %s; start it first", testName, test.Status)
				}

				recorded := 0
				for i := 0; i < count; i++ {
					inserted, err := s.RecordEvent(ctx, store.Event{
						TestID:    test.ID,
						VariantID: variant,
						EventType: eventType,
						VisitorID: visitorID,
						Revenue:   revenue,
					})
					if err != nil {
						return fmt.Errorf("failed to record event: %w", err)
					}
					if inserted {
						recorded++
					}
				}

				fmt.Printf("Recorded %d %s event(s) for %s/%s\n", recorded, eventType, testName, variantName)
				if recorded < count {
					fmt.Printf("Skipped %d duplicate(s) from visitor '%s'\n", count-recorded, visitorID)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of events to record")
	cmd.Flags().Float64VarP(&revenue, "revenue", "r", 0, "revenue to attach to a conversion")
	cmd.Flags().StringVar(&visitorID, "visitor", "", "visitor id for deduplication")

	return cmd
}
