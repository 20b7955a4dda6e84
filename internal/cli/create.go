package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		testType   string
		variants   string
		confidence float64
		minSample  int64
		metric     string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new test",
		Long: `Create a new test with named variants. Each variant is
"name:allocation"; the first one is the control. Allocations are
percentages and must sum to 100.

Examples:
  liftlab create hero --type landing_page --variants "control:50,bold:50"
  liftlab create promo --type email --variants "control:34,short:33,long:33" --confidence 0.99
  liftlab create cta --type cta --variants "control:50,green:50" --min-sample 2000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testName := args[0]

			variantConfigs, err := parseVariants(variants)
			if err != nil {
				return err
			}

			cfg := experiment.Config{
				Name:              testName,
				Type:              experiment.Type(testType),
				ConfidenceLevel:   confidence,
				MinimumSampleSize: minSample,
				PrimaryMetric:     metric,
				Variants:          variantConfigs,
			}

			test, err := experiment.NewTest(cfg)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				if err := s.CreateTest(context.Background(), test); err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}

				fmt.Printf("Created %s test '%s' with %d variants:\n", test.Type, test.Name, len(test.Variants))
				for _, v := range test.Variants {
					label := ""
					if v.IsControl {
						label = " (control)"
					}
					fmt.Printf("  %s: %.0f%%%s\n", v.Name, v.TrafficAllocation, label)
				}
				fmt.Printf("Confidence: %.0f%%, minimum sample: %d\n", test.ConfidenceLevel*100, test.MinimumSampleSize)
				fmt.Printf("\nStart it with: liftlab start %s\n", test.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&testType, "type", "t", "landing_page", "test type (email, content, social, paid, landing_page, cta)")
	cmd.Flags().StringVarP(&variants, "variants", "v", "", `comma-separated "name:allocation" pairs, control first (required)`)
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "confidence level (0.90, 0.95 or 0.99)")
	cmd.Flags().Int64Var(&minSample, "min-sample", 1000, "minimum sample size before calling results")
	cmd.Flags().StringVar(&metric, "metric", "conversion_rate", "primary metric")
	cmd.MarkFlagRequired("variants")

	return cmd
}

// parseVariants turns "control:50,bold:50" into variant configs. The
// first entry becomes the control.
func parseVariants(raw string) ([]experiment.VariantConfig, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("need at least 2 variants. Example: --variants \"control:50,challenger:50\"")
	}

	configs := make([]experiment.VariantConfig, 0, len(parts))
	for i, part := range parts {
		name, allocation, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			return nil, fmt.Errorf("variant %q missing allocation, want \"name:percent\"", part)
		}
		pct, err := strconv.ParseFloat(allocation, 64)
		if err != nil {
			return nil, fmt.Errorf("variant %q has invalid allocation %q", name, allocation)
		}
		configs = append(configs, experiment.VariantConfig{
			Name:              strings.TrimSpace(name),
			IsControl:         i == 0,
			TrafficAllocation: pct,
		})
	}
	return configs, nil
}
