package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liftlab/liftlab/internal/performance"
	"github.com/liftlab/liftlab/internal/recommend"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRecommendCmd())
}

func newRecommendCmd() *cobra.Command {
	var maxDays int

	cmd := &cobra.Command{
		Use:   "recommend <name>",
		Short: "Suggest next actions for a test",
		Long: `Classify a test into next actions: declare a winner, collect more
samples, terminate as inconclusive, or optimize a lagging variant.

Variant economics come from ledger campaigns named "<test>/<variant>",
when they exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, err := s.GetTest(ctx, name)
				if err != nil {
					return notFound(err, name)
				}

				in := recommend.Input{
					TestName:          test.Name,
					SampleSize:        test.SampleSize(),
					MinimumSampleSize: test.MinimumSampleSize,
					ConfidenceLevel:   test.ConfidenceLevel,
					Elapsed:           test.Elapsed(time.Now()),
				}
				if sig, err := test.Significance(); err == nil {
					in.Significance = sig
				}
				for _, v := range test.Variants {
					agg, err := s.CampaignAggregate(ctx, test.Name+"/"+v.Name, time.Time{}, time.Time{})
					if err != nil {
						return fmt.Errorf("failed to aggregate variant ledger: %w", err)
					}
					in.VariantROI = append(in.VariantROI, performance.Compute(agg))
				}

				cfg := recommend.DefaultConfig()
				if maxDays > 0 {
					cfg.MaxDuration = time.Duration(maxDays) * 24 * time.Hour
				}

				recs := recommend.Evaluate(in, cfg)
				if len(recs) == 0 {
					fmt.Printf("Nothing to do for '%s': keep it running.\n", test.Name)
					return nil
				}

				fmt.Printf("Recommendations for '%s':\n\n", test.Name)
				for i, rec := range recs {
					fmt.Printf("%d. [%s] %s\n", i+1, strings.ToUpper(string(rec.Priority)), rec.Action)
					fmt.Printf("   %s\n", rec.Reasoning)
					fmt.Printf("   impact %d / effort %d\n", rec.Impact, rec.Effort)
					if i < len(recs)-1 {
						fmt.Println()
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxDays, "max-days", 0, "days before an inconclusive test should stop (default 30)")

	return cmd
}
