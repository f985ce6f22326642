package main

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/payment"
)

func parseAmount(raw string, what string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperrors.Validation("Enter a valid " + what + ".")
	}
	return amount, nil
}

func (c *cli) walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show balances and recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			w, err := app.Wallet.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Balance: KES %s\n", w.DisplayBalance().StringFixed(2))
			if !w.HasMadeRealDeposit && w.BonusBalance.IsPositive() {
				cmd.Printf("  includes welcome bonus KES %s\n", w.BonusBalance.StringFixed(2))
			}

			history, _ := cmd.Flags().GetBool("history")
			if !history {
				return nil
			}
			rows, err := app.Wallet.History(cmd.Context())
			if err != nil {
				return err
			}
			for _, tx := range rows {
				cmd.Printf("%6d  %-16s %10s  %-8s %s\n",
					tx.ID, tx.Type, tx.Amount.StringFixed(2), tx.Status, tx.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().Bool("history", false, "List transactions, newest first")
	return cmd
}

func (c *cli) depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit through M-Pesa and wait for it to settle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0], "amount")
			if err != nil {
				return err
			}
			app, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			h, err := app.Payments.Deposit(cmd.Context(), amount, observer(cmd))
			if err != nil {
				return err
			}
			cmd.Println("Check your phone and enter your M-Pesa PIN.")
			return waitSettled(cmd, h)
		},
	}
}

func (c *cli) withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Withdraw to M-Pesa and wait for it to settle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0], "amount")
			if err != nil {
				return err
			}
			app, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			h, err := app.Payments.Withdraw(cmd.Context(), amount, observer(cmd))
			if err != nil {
				return err
			}
			return waitSettled(cmd, h)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <transaction-id>",
		Short: "Follow a submitted payment until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			h, err := app.Payments.WatchExisting(cmd.Context(), args[0], observer(cmd))
			if err != nil {
				return err
			}
			return waitSettled(cmd, h)
		},
	}
}

// observer prints phase changes as the poller reports them
func observer(cmd *cobra.Command) func(payment.Observation) {
	var last payment.Phase
	return func(obs payment.Observation) {
		if obs.Phase == last {
			return
		}
		last = obs.Phase
		if !obs.Phase.Terminal() {
			cmd.Printf("Transaction %d: %s\n", obs.TransactionID, strings.ToLower(string(obs.Phase)))
		}
	}
}

func waitSettled(cmd *cobra.Command, h *payment.Handle) error {
	obs, err := h.Wait(cmd.Context())
	if err != nil {
		h.Cancel()
		return err
	}
	if obs.Phase == payment.PhaseSuccess && obs.Notice != nil {
		cmd.Println(obs.Notice.Message)
	}
	return obs.Err()
}
