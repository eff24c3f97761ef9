package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewOrdersCommand creates the orders command, listing all orders with the
// most recently updated first.
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List orders, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			orders, err := app.Engine.ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no orders")
				return nil
			}

			for _, o := range orders {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %7.2f  %s\n",
					o.ID, o.Status, o.Total, o.UpdatedAt)
			}
			return nil
		},
	}
}
