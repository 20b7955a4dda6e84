package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/stats"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results <name>",
	Short: "Show detailed results for a test",
	Long:  `Show per-variant conversion rates, confidence intervals and the significance verdict.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withStore(func(s *store.SQLiteStore) error {
		test, err := s.GetTest(context.Background(), name)
		if err != nil {
			return notFound(err, name)
		}

		fmt.Printf("TEST: %s\n", test.Name)
		fmt.Printf("TYPE: %s\n", test.Type)
		fmt.Printf("STATUS: %s\n", test.Status)
		fmt.Printf("METRIC: %s\n", test.PrimaryMetric)
		fmt.Printf("CREATED: %s\n", test.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT           IMPRESSIONS  CONVERSIONS  RATE     CI")
		fmt.Println(strings.Repeat("─", 64))

		leading := test.Leading()
		for _, v := range test.Variants {
			indicator := ""
			if leading != nil && v.Name == leading.Name && test.SampleSize() > 0 {
				indicator = " ← LEADING"
			}

			ciStr := "N/A"
			if v.Impressions > 0 {
				lo, hi := stats.WilsonInterval(int(v.Conversions), int(v.Impressions), test.ConfidenceLevel)
				ciStr = fmt.Sprintf("[%.1f%%, %.1f%%]", lo*100, hi*100)
			}

			name := v.Name
			if v.IsControl {
				name += " *"
			}
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %-11d  %-11d  %-7s  %s%s\n",
				name, v.Impressions, v.Conversions, formatPercent(v.Rate()), ciStr, indicator)
		}

		fmt.Println()
		printVerdict(test)
		return nil
	})
}

func printVerdict(test *experiment.Test) {
	res, err := test.Significance()
	if err != nil {
		fmt.Println("Statistical significance: not enough data")
		return
	}

	confPct := test.ConfidenceLevel * 100
	switch {
	case res.IsSignificant:
		fmt.Printf("Statistical significance: %.0f%% confident \"%s\" is the winner (p=%.4f)\n",
			confPct, res.Winner, res.PValue)
		if !test.ReachedMinimumSample() {
			fmt.Printf("Note: only %d of %d minimum samples collected; treat with caution\n",
				test.SampleSize(), test.MinimumSampleSize)
		}
	case res.PValue < 0.10:
		fmt.Printf("Statistical significance: trending (p=%.4f), not yet significant at %.0f%%\n",
			res.PValue, confPct)
	default:
		fmt.Println("Statistical significance: no meaningful difference yet")
	}
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate)
}
