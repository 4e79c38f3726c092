package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"vipra-store/internal/order"
	"vipra-store/internal/product"
	"vipra-store/internal/utils"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the storefront catalog and inspect orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(productCmd(a))
	root.AddCommand(ordersCmd(a))
	return root
}

// withApp connects lazily before running fn.
func withApp(a *app, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.connect(); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

func productCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage catalog products",
	}

	cmd.AddCommand(productListCmd(a))
	cmd.AddCommand(productAddCmd(a))
	cmd.AddCommand(productVisibilityCmd(a, "activate", "Show a product on the storefront", true))
	cmd.AddCommand(productVisibilityCmd(a, "deactivate", "Hide a product from the storefront", false))
	cmd.AddCommand(productDeleteCmd(a))
	return cmd
}

func productListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every product, active or not",
		Args:  cobra.NoArgs,
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			products, err := a.products.List(cmd.Context())
			if err != nil {
				return err
			}
			return printProducts(cmd.OutOrStdout(), products)
		}),
	}
}

func productAddCmd(a *app) *cobra.Command {
	var (
		name        string
		description string
		price       int
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the catalog",
		Args:  cobra.NoArgs,
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			p, err := a.products.Add(cmd.Context(), product.NewProductInput{
				Name:        name,
				Description: description,
				PriceINR:    price,
				IsActive:    !inactive,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created product %d (%s, ₹%d)\n", p.ID, p.Name, p.PriceINR)
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&description, "description", "", "product description")
	cmd.Flags().IntVar(&price, "price", 0, "price in whole rupees")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the product hidden from the storefront")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func productVisibilityCmd(a *app, verb, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.products.SetActive(cmd.Context(), id, active); err != nil {
				return productError(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "product %d %sd\n", id, verb)
			return nil
		}),
	}
}

func productDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product that no order refers to",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.products.Delete(cmd.Context(), id); err != nil {
				return productError(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "product %d deleted\n", id)
			return nil
		}),
	}
}

func ordersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect orders",
	}

	cmd.AddCommand(ordersListCmd(a))
	cmd.AddCommand(ordersShowCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List PENDING orders that never received a checkout session",
		Args:  cobra.NoArgs,
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			orders, err := a.orders.ListPendingWithoutSession(cmd.Context())
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no pending orders without a session")
				return err
			}
			return printOrders(cmd.OutOrStdout(), orders)
		}),
	})

	return cmd
}

func ordersListCmd(a *app) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent orders, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			var st order.OrderStatus
			if status != "" {
				parsed, err := order.ParseStatus(status)
				if err != nil {
					return err
				}
				st = parsed
			}

			orders, err := a.orders.ListByStatus(cmd.Context(), st, limit)
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no orders")
				return err
			}
			return printOrders(cmd.OutOrStdout(), orders)
		}),
	}

	cmd.Flags().StringVar(&status, "status", "", "only orders with this status (PENDING, PAID, CANCELED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of orders")
	return cmd
}

func ordersShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|session id|payment intent id>",
		Short: "Show one order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ref := args[0]

			var (
				o   *order.Order
				err error
			)
			switch id, numeric := utils.ParseUint(ref); {
			case numeric:
				o, err = a.orders.GetByID(ctx, id)
			case strings.HasPrefix(ref, "pi_"):
				o, err = a.orders.GetByPaymentIntentID(ctx, ref)
			default:
				o, err = a.orders.GetBySessionID(ctx, ref)
			}
			if errors.Is(err, order.ErrOrderNotFound) {
				return fmt.Errorf("order %s not found", ref)
			}
			if err != nil {
				return err
			}

			items, err := a.orders.ListItems(ctx, o.ID)
			if err != nil {
				return err
			}
			return printOrderDetail(cmd.OutOrStdout(), o, items)
		}),
	}
}

func parseID(s string) (uint, error) {
	id, ok := utils.ParseUint(s)
	if !ok {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}

func productError(id uint, err error) error {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		return fmt.Errorf("product %d not found", id)
	case errors.Is(err, product.ErrProductInUse):
		return fmt.Errorf("product %d is referenced by existing orders; deactivate it instead", id)
	default:
		return err
	}
}

func printProducts(w io.Writer, products []product.Product) error {
	if len(products) == 0 {
		_, err := fmt.Fprintln(w, "no products")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE (INR)\tACTIVE")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t\n", p.ID, p.Name, p.PriceINR, p.IsActive)
	}
	return tw.Flush()
}

func printOrders(w io.Writer, orders []order.Order) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tSTATUS\tTOTAL (INR)\tSESSION\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, userLabel(o.UserID), o.Status, o.TotalAmountINR,
			orDash(o.StripeSessionID), o.CreatedAt.Format(timeLayout))
	}
	return tw.Flush()
}

func printOrderDetail(w io.Writer, o *order.Order, items []order.OrderItem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Order\t%d\n", o.ID)
	fmt.Fprintf(tw, "User\t%s\n", userLabel(o.UserID))
	fmt.Fprintf(tw, "Status\t%s\n", o.Status)
	fmt.Fprintf(tw, "Total (INR)\t%d\n", o.TotalAmountINR)
	fmt.Fprintf(tw, "Session\t%s\n", orDash(o.StripeSessionID))
	fmt.Fprintf(tw, "Payment intent\t%s\n", orDash(o.StripePaymentIntentID))
	fmt.Fprintf(tw, "Created\t%s\n", o.CreatedAt.Format(timeLayout))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "\nno items")
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tUNIT (INR)\tSUBTOTAL (INR)")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", it.ProductName, it.Quantity, it.UnitPriceINR, it.Subtotal())
	}
	return tw.Flush()
}

const timeLayout = "2006-01-02 15:04:05"

func userLabel(id *uint) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
