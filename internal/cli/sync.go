package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command, which runs one push/pull cycle
// and reports the result.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued mutations and pull remote changes once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.Sync(cmd.Context()); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sync complete")
			return nil
		},
	}
}
