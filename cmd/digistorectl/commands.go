package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"digistore/internal/catalog"
	"digistore/internal/model"
	"digistore/internal/security"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func ordersCmd(open ledgerOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect recorded orders",
	}
	cmd.PersistentFlags().BoolP("json", "j", false, "Output as JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")

			store, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var orders []model.Order
			if email != "" {
				orders, err = store.GetOrdersByEmail(cmd.Context(), email)
			} else {
				orders, err = store.GetAllOrders(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to list orders: %w", err)
			}

			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), orders)
			}
			return writeOrderTable(cmd.OutOrStdout(), orders)
		},
	}
	list.Flags().StringP("email", "e", "", "Only orders placed with this email")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			order, err := store.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get order: %w", err)
			}
			if order == nil {
				return fmt.Errorf("order %s not found", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), order)
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show revenue and order counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to compute stats: %w", err)
			}
			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), s)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Revenue:   NGN %d\n", s.TotalRevenue)
			fmt.Fprintf(out, "Orders:    %d\n", s.OrderCount)
			fmt.Fprintf(out, "Completed: %d\n", s.CompletedOrderCount)
			fmt.Fprintf(out, "Pending:   %d\n", s.PendingOrderCount)
			fmt.Fprintf(out, "Failed:    %d\n", s.FailedOrderCount)
			return nil
		},
	}

	cmd.AddCommand(list, get, stats)
	return cmd
}

func snapshotCmd(open ledgerOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the order snapshot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Rewrite the snapshot from the order repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := store.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to refresh snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot refreshed with %d orders\n", n)
			return nil
		},
	})

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with the product catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file, or the embedded catalog when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			c, err := catalog.Load(path, zerolog.Nop())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog OK: %d products\n", c.Len())
			return nil
		},
	})

	return cmd
}

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Generate a payment reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			fmt.Fprintln(cmd.OutOrStdout(), security.GenerateReference(prefix))
			return nil
		},
	}
	cmd.Flags().StringP("prefix", "p", security.DefaultReferencePrefix, "Reference prefix")
	return cmd
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOrderTable(w io.Writer, orders []model.Order) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tAMOUNT\tPRODUCT\tEMAIL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			o.ID, o.Status, o.Amount, o.ProductName, o.CustomerEmail, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
