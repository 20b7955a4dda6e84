package cli

import (
	"context"
	"fmt"

	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		newLifecycleCmd("start", experiment.ActionStart, "Start a draft test"),
		newLifecycleCmd("pause", experiment.ActionPause, "Pause an active test"),
		newLifecycleCmd("resume", experiment.ActionResume, "Resume a paused test"),
		newLifecycleCmd("complete", experiment.ActionComplete, "Complete an active or paused test"),
	)
}

func newLifecycleCmd(use string, action experiment.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, err := s.GetTest(ctx, name)
				if err != nil {
					return notFound(err, name)
				}

				if err := test.Transition(action); err != nil {
					return err
				}
				if err := s.SaveStatus(ctx, test); err != nil {
					return fmt.Errorf("failed to save status: %w", err)
				}

				fmt.Printf("Test '%s' is now %s\n", test.Name, test.Status)
				if test.Status == experiment.StatusCompleted {
					fmt.Printf("See the final numbers with: liftlab results %s\n", test.Name)
				}
				return nil
			})
		},
	}
}
