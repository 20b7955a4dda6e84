package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/liftlab/liftlab/internal/forecast"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newForecastCmd())
}

func newForecastCmd() *cobra.Command {
	var (
		periods  int
		campaign bool
		lookback int
	)

	cmd := &cobra.Command{
		Use:   "forecast <name>",
		Short: "Project future performance",
		Long: `Project impressions, conversions and revenue forward from current
numbers. By default <name> is a test and the baseline is its counters;
with --campaign it is a ledger campaign and the baseline is the average
of the last few months of entries.

Examples:
  liftlab forecast hero --periods 6
  liftlab forecast summer-sale --campaign --periods 12 --lookback 6`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				var (
					baseline forecast.Baseline
					err      error
				)
				if campaign {
					baseline, err = campaignBaseline(s, name, lookback)
				} else {
					baseline, err = testBaseline(s, name)
				}
				if err != nil {
					return err
				}

				points, err := forecast.Generate(baseline, periods, time.Now().UTC())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PERIOD\tIMPRESSIONS\tCONVERSIONS\tREVENUE\tCONFIDENCE")
				for _, p := range points {
					fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\t%.0f%%\n",
						p.Period.Format("2006-01"),
						formatNumber(p.Impressions),
						formatNumber(p.Conversions),
						p.Revenue,
						p.Confidence*100,
					)
				}
				if err := w.Flush(); err != nil {
					return err
				}

				fmt.Printf("\nAssumptions: %v\n", points[0].Factors)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&periods, "periods", "p", 6, "months to project (1-60)")
	cmd.Flags().BoolVar(&campaign, "campaign", false, "treat <name> as a ledger campaign")
	cmd.Flags().IntVar(&lookback, "lookback", 3, "months of ledger history to average (campaign mode)")

	return cmd
}

func testBaseline(s *store.SQLiteStore, name string) (forecast.Baseline, error) {
	test, err := s.GetTest(context.Background(), name)
	if err != nil {
		return forecast.Baseline{}, notFound(err, name)
	}

	var b forecast.Baseline
	for _, v := range test.Variants {
		b.Impressions += v.Impressions
		b.Conversions += v.Conversions
		b.Revenue += v.Revenue
	}
	return b, nil
}

// campaignBaseline averages the last lookback calendar months of ledger
// entries into one baseline period.
func campaignBaseline(s *store.SQLiteStore, name string, lookback int) (forecast.Baseline, error) {
	if lookback < 1 {
		return forecast.Baseline{}, fmt.Errorf("lookback must be at least 1 month")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var history []forecast.Baseline
	for i := lookback; i >= 1; i-- {
		from := monthStart.AddDate(0, -i, 0)
		to := monthStart.AddDate(0, -i+1, 0).Add(-time.Second)

		agg, err := s.CampaignAggregate(ctx, name, from, to)
		if err != nil {
			return forecast.Baseline{}, fmt.Errorf("failed to aggregate %s: %w", name, err)
		}
		if agg.TotalSpent == 0 && agg.TotalRevenue == 0 && agg.TotalConversions == 0 && agg.TotalLeads == 0 {
			continue
		}
		history = append(history, forecast.Baseline{
			Conversions: agg.TotalConversions,
			Revenue:     agg.TotalRevenue,
			Cost:        agg.TotalSpent,
		})
	}

	baseline, err := forecast.BaselineFromHistory(history)
	if err != nil {
		return forecast.Baseline{}, fmt.Errorf("no ledger entries for '%s' in the last %d months", name, lookback)
	}
	return baseline, nil
}
