package cli

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/liftlab/liftlab/internal/store"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
}

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a test and its events",
		Long:  `Delete a test, its variants and its recorded events. This cannot be undone.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, err := s.GetTest(ctx, name)
				if err != nil {
					return notFound(err, name)
				}

				if !force {
					prompt := promptui.Prompt{
						Label:     fmt.Sprintf("Delete test '%s' and %d recorded impressions", test.Name, test.SampleSize()),
						IsConfirm: true,
					}
					if _, err := prompt.Run(); err != nil {
						if err == promptui.ErrInterrupt || err == promptui.ErrAbort {
							fmt.Println("Cancelled.")
							return nil
						}
						return err
					}
				}

				if err := s.DeleteTest(ctx, name); err != nil {
					return fmt.Errorf("failed to delete test: %w", err)
				}
				fmt.Printf("Deleted test '%s'\n", name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}
