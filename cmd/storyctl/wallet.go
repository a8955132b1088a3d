package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/storykeep-backend/internal/app"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/services"
)

func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect and adjust resource wallets",
	}
	cmd.AddCommand(
		newWalletShowCmd(),
		newWalletGrantCmd(),
		newWalletReconcileCmd(),
		newWalletStatsCmd(),
	)
	return cmd
}

func parseUser(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q", raw)
	}
	return id, nil
}

func printWallet(w *services.Wallet) {
	fmt.Printf("wallet %s (version %d)\n", w.UserID, w.Version)
	fmt.Printf("  project vouchers:  %d\n", w.ProjectVouchers)
	fmt.Printf("  facilitator seats: %d\n", w.FacilitatorSeats)
	fmt.Printf("  storyteller seats: %d\n", w.StorytellerSeats)
}

func newWalletShowCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				w, err := a.Services.Ledger.GetWallet(cmd.Context(), userID)
				if err != nil {
					return err
				}
				emit(w, func() { printWallet(w) })
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newWalletGrantCmd() *cobra.Command {
	var (
		user        string
		resource    string
		amount      int
		txType      string
		description string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Credit resources to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				w, err := a.Services.Ledger.CreditResources(cmd.Context(), userID, txType, services.ResourceRequest{
					ResourceType: resource,
					Amount:       amount,
					Description:  description,
				})
				if err != nil {
					return err
				}
				emit(w, func() { printWallet(w) })
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id")
	cmd.Flags().StringVar(&resource, "resource", "", "project_voucher|facilitator_seat|storyteller_seat")
	cmd.Flags().IntVar(&amount, "amount", 0, "Units to credit")
	cmd.Flags().StringVar(&txType, "type", types.TransactionGrant, "grant|purchase|refund")
	cmd.Flags().StringVar(&description, "description", "manual grant", "Ledger description")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newWalletReconcileCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare a wallet's balances with its transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				rec, err := a.Services.Ledger.ReconcileWallet(cmd.Context(), userID)
				if err != nil {
					return err
				}
				emit(rec, func() {
					fmt.Printf("wallet %s balanced=%t\n", rec.UserID, rec.Balanced)
					for _, l := range rec.Lines {
						fmt.Printf("  %-17s balance=%d ledger=%d drift=%d\n", l.ResourceType, l.Balance, l.LedgerSum, l.Drift)
					}
				})
				if !rec.Balanced {
					return fmt.Errorf("wallet %s has drifted from its ledger", rec.UserID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newWalletStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print system-wide wallet and ledger totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				st, err := a.Services.Ledger.GetSystemStats(cmd.Context())
				if err != nil {
					return err
				}
				emit(st, func() {
					fmt.Printf("wallets: %d  active users: %d\n", st.TotalWallets, st.ActiveUsers)
					for _, rt := range types.ResourceTypes {
						fmt.Printf("  outstanding %-17s %d\n", rt, st.OutstandingTotals[rt])
					}
					fmt.Printf("transactions: %d  spent: %d  earned: %d\n",
						st.Transactions.TotalTransactions, st.Transactions.TotalSpent, st.Transactions.TotalEarned)
				})
				return nil
			})
		},
	}
}
