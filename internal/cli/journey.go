package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/liftlab/liftlab/internal/attribution"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	journeyCmd := &cobra.Command{
		Use:   "journey",
		Short: "Record and analyze customer journeys",
	}
	journeyCmd.AddCommand(newJourneyAddCmd(), journeyReportCmd)
	rootCmd.AddCommand(journeyCmd)

	// Top-level shorthand for the breakdown.
	rootCmd.AddCommand(&cobra.Command{
		Use:   "attribution",
		Short: "Show the multi-touch attribution breakdown",
		RunE:  journeyReportCmd.RunE,
	})
}

func newJourneyAddCmd() *cobra.Command {
	var touches []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a converting journey",
		Long: `Record one customer journey that ended in a conversion, as an ordered
list of touchpoints. Each touch is "channel" or "channel:campaign".

Examples:
  liftlab journey add --touch organic --touch email:welcome --touch paid:retarget
  liftlab journey add --touch social:launch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(touches) == 0 {
				return fmt.Errorf("need at least one --touch")
			}

			now := time.Now().UTC()
			touchpoints := make([]attribution.Touchpoint, 0, len(touches))
			for i, raw := range touches {
				channel, campaign, _ := strings.Cut(strings.TrimSpace(raw), ":")
				if channel == "" {
					return fmt.Errorf("touch %q has no channel", raw)
				}
				touchpoints = append(touchpoints, attribution.Touchpoint{
					Channel:    channel,
					Campaign:   campaign,
					OccurredAt: now.Add(time.Duration(i) * time.Second),
				})
			}

			// Validate before persisting.
			credits, err := attribution.Attribute(touchpoints)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				journey, err := s.CreateJourney(context.Background(), touchpoints)
				if err != nil {
					return fmt.Errorf("failed to save journey: %w", err)
				}

				fmt.Printf("Recorded journey %s with %d touchpoints:\n", journey.ID, len(credits))
				for _, c := range credits {
					role := "assist"
					if c.FirstTouch {
						role = "first touch"
					}
					if c.LastTouch {
						role = "last touch"
					}
					if c.FirstTouch && c.LastTouch {
						role = "only touch"
					}
					fmt.Printf("  %d. %-12s %.0f%% credit (%s)\n", c.Position+1, c.Channel, c.Weight*100, role)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&touches, "touch", nil, `touchpoint "channel" or "channel:campaign", in order`)

	return cmd
}

var journeyReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the multi-touch attribution breakdown",
	Long:  `Aggregate every recorded journey into per-channel attribution credit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.SQLiteStore) error {
			journeys, err := s.ListJourneys(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list journeys: %w", err)
			}

			if len(journeys) == 0 {
				fmt.Println("No journeys yet. Record one with 'liftlab journey add'.")
				return nil
			}

			agg := attribution.NewAggregator()
			for _, j := range journeys {
				if err := agg.Add(j.Touchpoints); err != nil {
					return fmt.Errorf("failed to attribute journey %s: %w", j.ID, err)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tFIRST\tLAST\tASSISTS\tCREDIT")
			for _, b := range agg.Breakdown() {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\n",
					b.Channel, b.FirstTouch, b.LastTouch, b.Assisted, b.Conversions)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\n%d journeys attributed (position-based: 40%% first, 30%% last, 30%% assists)\n", len(journeys))
			return nil
		})
	},
}
