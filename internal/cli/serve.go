package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openstall/stallpos/internal/server"
)

// NewServeCommand creates the serve command, which runs the development
// sync backend terminals can point api_base_url at.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development sync backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := server.New()
			slog.Info("sync backend listening", "addr", addr)
			return app.Listen(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	return cmd
}
