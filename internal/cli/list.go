package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tests",
	Long:  `List all tests with their status and traffic so far.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		tests, err := s.ListTests(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list tests: %w", err)
		}

		if len(tests) == 0 {
			fmt.Println("No tests yet.")
			fmt.Println()
			fmt.Println("Create one with:")
			fmt.Println("  liftlab create hero --type landing_page --variants \"control:50,challenger:50\"")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tSTATUS\tVARIANTS\tIMPRESSIONS\tCONVERSIONS\tCREATED")

		for _, test := range tests {
			var conversions int64
			for _, v := range test.Variants {
				conversions += v.Conversions
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				test.Name,
				test.Type,
				strings.ToUpper(string(test.Status)),
				len(test.Variants),
				formatNumber(test.SampleSize()),
				formatNumber(conversions),
				test.CreatedAt.Format("2006-01-02"),
			)
		}

		return w.Flush()
	})
}
