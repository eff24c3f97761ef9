package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openstall/stallpos/internal/pos"
	"github.com/openstall/stallpos/internal/print"
)

// NewOrderCommand creates the order command group.
func NewOrderCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create orders and change their status",
	}
	cmd.AddCommand(newOrderNewCommand(opts))
	cmd.AddCommand(newOrderStatusCommand(opts))
	return cmd
}

func newOrderNewCommand(opts *RootOptions) *cobra.Command {
	var itemFlags []string
	var printReceipt bool

	cmd := &cobra.Command{
		Use:   "new --item name:qty [--item name:qty ...]",
		Short: "Create an order from menu items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(itemFlags) == 0 {
				return fmt.Errorf("at least one --item is required")
			}

			app, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			items, total, err := resolveItems(cmd.Context(), app, itemFlags)
			if err != nil {
				return err
			}

			order, err := app.Engine.CreateOrder(cmd.Context(), pos.Order{Total: total}, items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created order %s  total %.2f\n", order.ID, order.Total)

			if printReceipt {
				if err := enqueueReceipt(cmd.Context(), app, order, items); err != nil {
					return err
				}
				app.Printer.Drain(cmd.Context())
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&itemFlags, "item", nil, "menu item as name:qty, e.g. burger:2")
	cmd.Flags().BoolVar(&printReceipt, "print", false, "print a receipt after creating the order")
	return cmd
}

func newOrderStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Set an order's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			order, err := app.Engine.UpdateOrderStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if order == nil {
				return fmt.Errorf("order %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s is now %s\n", order.ID, order.Status)
			return nil
		},
	}
}

// resolveItems turns name:qty flags into order items priced from the menu.
func resolveItems(ctx context.Context, app *App, flags []string) ([]pos.OrderItem, float64, error) {
	menu, err := app.Engine.MenuItems(ctx)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]pos.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	var items []pos.OrderItem
	var total float64
	for _, flag := range flags {
		name, qtyStr, found := strings.Cut(flag, ":")
		qty := 1
		if found {
			qty, err = strconv.Atoi(qtyStr)
			if err != nil || qty < 1 {
				return nil, 0, fmt.Errorf("invalid quantity in --item %q", flag)
			}
		}

		menuItem, ok := byID[name]
		if !ok {
			return nil, 0, fmt.Errorf("unknown menu item %q", name)
		}

		items = append(items, pos.OrderItem{
			ProductID: menuItem.ID,
			Name:      menuItem.Name,
			Price:     menuItem.Price,
			Qty:       qty,
		})
		total += menuItem.Price * float64(qty)
	}
	return items, total, nil
}

// enqueueReceipt queues a receipt print job for the order.
func enqueueReceipt(ctx context.Context, app *App, order pos.Order, items []pos.OrderItem) error {
	type receiptItem struct {
		Qty   int     `json:"qty"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	receiptItems := make([]receiptItem, len(items))
	for i, item := range items {
		receiptItems[i] = receiptItem{Qty: item.Qty, Name: item.Name, Price: item.Price}
	}

	_, err := app.Printer.Enqueue(ctx, print.JobSpec{
		Destination: "receipt",
		TemplateID:  "receipt",
		Data: map[string]any{
			"order": map[string]any{"id": order.ID, "total": order.Total},
			"items": receiptItems,
		},
	})
	return err
}
