package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openstall/stallpos/internal/pos"
)

// NewPrintCommand creates the print command group.
func NewPrintCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print receipts and inspect the print queue",
	}
	cmd.AddCommand(newPrintReceiptCommand(opts))
	cmd.AddCommand(newPrintJobsCommand(opts))
	return cmd
}

func newPrintReceiptCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt [order-id]",
		Short: "Queue and print a receipt for an order (latest when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			order, err := resolveOrder(cmd.Context(), app, args)
			if err != nil {
				return err
			}

			items, err := app.Engine.OrderItemsFor(cmd.Context(), order.ID)
			if err != nil {
				return err
			}
			if err := enqueueReceipt(cmd.Context(), app, *order, items); err != nil {
				return err
			}

			app.Printer.Drain(cmd.Context())
			return nil
		},
	}
}

// resolveOrder returns the order named by args, or the most recently
// updated order when no id was given.
func resolveOrder(ctx context.Context, app *App, args []string) (*pos.Order, error) {
	if len(args) == 1 {
		order, err := app.Engine.GetOrder(ctx, args[0])
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, fmt.Errorf("order %s not found", args[0])
		}
		return order, nil
	}

	orders, err := app.Engine.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("no orders to print")
	}
	return &orders[0], nil
}

func newPrintJobsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List print jobs and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			jobs, err := app.Printer.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no print jobs")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  prio %2d  attempts %d  %s\n",
					j.ID, j.Status, j.Priority, j.Attempts, j.Destination)
			}
			return nil
		},
	}
}
