package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Daneel-Li/storefront-pay/internal/app"
	"github.com/Daneel-Li/storefront-pay/internal/config"
	"github.com/Daneel-Li/storefront-pay/internal/dao/migrations"
	"github.com/Daneel-Li/storefront-pay/internal/services"
	"github.com/Daneel-Li/storefront-pay/internal/services/payment"
)

// setup loads config and opens the database without running migrations.
func setup() (*config.Config, *app.Components, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	app.SetupLogging(cfg.Loglevel, cfg.LogFormat)
	cfg.Database.SkipMigrate = true
	gdb, err := app.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := app.Build(cfg, gdb, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

func migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the payment schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := setup()
			if err != nil {
				return err
			}
			defer c.Close()
			if args[0] == "up" {
				return migrations.Up(c.Repo.DB(), cfg.Database.Driver)
			}
			return migrations.Down(c.Repo.DB(), cfg.Database.Driver, steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

// parseNotes turns k=v pairs into the gateway notes map.
func parseNotes(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	notes := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("note %q is not key=value", p)
		}
		notes[k] = v
	}
	return notes, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func refundCmd() *cobra.Command {
	var (
		amount string
		notes  []string
	)
	cmd := &cobra.Command{
		Use:   "refund [gateway-payment-id]",
		Short: "Refund a captured payment, in full unless --amount is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := payment.RefundInput{GatewayPaymentID: args[0]}
			if amount != "" {
				d, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				if in.Amount, err = payment.ToMinorUnits(d); err != nil {
					return err
				}
			}
			n, err := parseNotes(notes)
			if err != nil {
				return err
			}
			in.Notes = n

			_, c, err := setup()
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := c.Payments.Refund(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("%s: %w", payment.Kind(err), err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount in major units, e.g. 100.50")
	cmd.Flags().StringArrayVar(&notes, "note", nil, "key=value note passed to the gateway (repeatable)")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [order-id]",
		Short: "Print an order with its payments, refunds and webhook deliveries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := setup()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			order, err := c.Payments.GetOrder(ctx, args[0])
			if err != nil {
				return err
			}
			payments, err := c.Repo.ListPaymentsByOrderID(ctx, order.ID)
			if err != nil {
				return err
			}
			type paymentView struct {
				Payment  interface{} `json:"payment"`
				Refunds  interface{} `json:"refunds"`
				Webhooks interface{} `json:"webhooks,omitempty"`
			}
			views := make([]paymentView, 0, len(payments))
			for _, p := range payments {
				refunds, err := c.Repo.ListRefundsByPaymentID(ctx, p.ID)
				if err != nil {
					return err
				}
				v := paymentView{Payment: p, Refunds: refunds}
				if p.GatewayPaymentID != nil {
					if v.Webhooks, err = c.Repo.ListWebhookEvents(ctx, *p.GatewayPaymentID); err != nil {
						return err
					}
				}
				views = append(views, v)
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"order": order, "payments": views})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token for the refund endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			tok, err := services.NewJWTService(cfg.Auth.JwtKey, cfg.Auth.JwtIssuer).GenerateToken(subject, true, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
