package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/liftlab/liftlab/internal/performance"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	roiCmd := &cobra.Command{
		Use:   "roi",
		Short: "Track campaign spend and compute ROI",
	}
	roiCmd.AddCommand(newROIRecordCmd(), newROIReportCmd(), roiTopCmd)
	rootCmd.AddCommand(roiCmd)
}

func newROIRecordCmd() *cobra.Command {
	var (
		spend       float64
		revenue     float64
		leads       int
		conversions int
	)

	cmd := &cobra.Command{
		Use:   "record <campaign>",
		Short: "Record spend, revenue, leads or conversions for a campaign",
		Long: `Append entries to a campaign's ledger. Amounts accumulate; record as
often as you like.

Examples:
  liftlab roi record summer-sale --spend 500
  liftlab roi record summer-sale --revenue 1500 --conversions 30
  liftlab roi record hero/challenger --spend 200 --revenue 800`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaign := args[0]
			if spend == 0 && revenue == 0 && leads == 0 && conversions == 0 {
				return fmt.Errorf("nothing to record; pass --spend, --revenue, --leads or --conversions")
			}

			entries := []struct {
				kind   string
				amount float64
			}{
				{store.KindSpend, spend},
				{store.KindRevenue, revenue},
				{store.KindLead, float64(leads)},
				{store.KindConversion, float64(conversions)},
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()
				now := time.Now().UTC()

				for _, e := range entries {
					if e.amount == 0 {
						continue
					}
					err := s.AddCampaignEvent(ctx, store.CampaignEvent{
						Campaign:   campaign,
						Kind:       e.kind,
						Amount:     e.amount,
						OccurredAt: now,
					})
					if err != nil {
						return fmt.Errorf("failed to record %s: %w", e.kind, err)
					}
				}

				fmt.Printf("Recorded ledger entries for '%s'\n", campaign)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&spend, "spend", 0, "amount spent")
	cmd.Flags().Float64Var(&revenue, "revenue", 0, "revenue generated")
	cmd.Flags().IntVar(&leads, "leads", 0, "leads generated")
	cmd.Flags().IntVar(&conversions, "conversions", 0, "conversions generated")

	return cmd
}

func newROIReportCmd() *cobra.Command {
	var fromStr, toStr string

	cmd := &cobra.Command{
		Use:   "report <campaign>",
		Short: "Show ROI metrics for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaign := args[0]

			from, to, err := parseDateRange(fromStr, toStr)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				agg, err := s.CampaignAggregate(context.Background(), campaign, from, to)
				if err != nil {
					return fmt.Errorf("failed to aggregate campaign: %w", err)
				}

				rec := performance.Compute(agg)

				fmt.Printf("CAMPAIGN: %s\n", rec.Campaign)
				if !from.IsZero() || !to.IsZero() {
					fmt.Printf("PERIOD: %s to %s\n", fromStr, toStr)
				}
				fmt.Println()
				fmt.Printf("  Spent:        $%.2f\n", rec.TotalSpent)
				fmt.Printf("  Revenue:      $%.2f\n", rec.TotalRevenue)
				fmt.Printf("  Conversions:  %d\n", rec.TotalConversions)
				fmt.Println()
				fmt.Printf("  ROI:          %.1f%%\n", rec.ROI)
				fmt.Printf("  ROAS:         %.2f\n", rec.ROAS)
				fmt.Printf("  CPA:          $%.2f\n", rec.CPA)
				fmt.Printf("  CPL:          $%.2f\n", rec.CPL)
				fmt.Printf("  LTV:          $%.2f\n", rec.LTV)
				fmt.Printf("  Payback:      %.2f\n", rec.PaybackPeriod)

				spends, err := s.CampaignAmounts(context.Background(), campaign, store.KindSpend, from, to)
				if err != nil {
					return fmt.Errorf("failed to load spend entries: %w", err)
				}
				if len(spends) > 1 {
					sum := performance.Summarize(spends)
					fmt.Printf("\n  %d spend entries: mean $%.2f, median $%.2f, largest $%.2f\n",
						sum.Count, sum.Mean, sum.Median, sum.Max)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end date (YYYY-MM-DD)")

	return cmd
}

var roiTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank all campaigns by ROI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.SQLiteStore) error {
			ctx := context.Background()

			campaigns, err := s.ListCampaigns(ctx)
			if err != nil {
				return fmt.Errorf("failed to list campaigns: %w", err)
			}
			if len(campaigns) == 0 {
				fmt.Println("No campaign ledger entries yet. Record one with 'liftlab roi record'.")
				return nil
			}

			records := make([]performance.Record, 0, len(campaigns))
			rois := make([]float64, 0, len(campaigns))
			for _, c := range campaigns {
				agg, err := s.CampaignAggregate(ctx, c, time.Time{}, time.Time{})
				if err != nil {
					return fmt.Errorf("failed to aggregate %s: %w", c, err)
				}
				rec := performance.Compute(agg)
				records = append(records, rec)
				rois = append(rois, rec.ROI)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CAMPAIGN\tSPENT\tREVENUE\tROI\tROAS\tCPA")
			for _, rec := range performance.Rank(records) {
				fmt.Fprintf(w, "%s\t$%.2f\t$%.2f\t%.1f%%\t%.2f\t$%.2f\n",
					rec.Campaign, rec.TotalSpent, rec.TotalRevenue, rec.ROI, rec.ROAS, rec.CPA)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			summary := performance.Summarize(rois)
			fmt.Printf("\n%d campaigns, mean ROI %.1f%%, median %.1f%%, best %.1f%%\n",
				summary.Count, summary.Mean, summary.Median, summary.Max)
			return nil
		})
	},
}

func parseDateRange(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from date %q, want YYYY-MM-DD", fromStr)
		}
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to date %q, want YYYY-MM-DD", toStr)
		}
		// Inclusive end of day.
		to = to.Add(24*time.Hour - time.Second)
	}
	return from, to, nil
}
