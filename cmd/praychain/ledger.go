package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/przemek890/Praychain/internal/common"
	"github.com/przemek890/Praychain/internal/model"
)

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show a user's token balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			acct, err := store.GetAccount(ctx, args[0])
			if errors.Is(err, common.ErrNotFound) {
				fmt.Printf("%s has no ledger account yet\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("User:    %s\n", acct.UserID)
			fmt.Printf("Balance: %d PRAY\n", acct.CurrentBalance)
			fmt.Printf("Earned:  %d   Spent: %d\n", acct.TotalEarned, acct.TotalSpent)
			if acct.WalletAddress != "" {
				fmt.Printf("Wallet:  %s\n", acct.WalletAddress)
			}
			return nil
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show a user's transaction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := store.GetTransactions(ctx, args[0], limit, offset)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Println("No transactions")
				return nil
			}

			for _, txn := range txns {
				sign := "+"
				if txn.Type == model.TxSpend {
					sign = "-"
				}
				line := fmt.Sprintf("%s  %s%4d  %-14s %s",
					txn.CreatedAt.Format("2006-01-02 15:04"), sign, txn.Amount, txn.Source, txn.Description)
				if txn.SettlementStatus != model.SettlementSkipped {
					line += fmt.Sprintf("  [settlement: %s]", txn.SettlementStatus)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum transactions to show")
	cmd.Flags().Int("offset", 0, "transactions to skip")
	return cmd
}

func spendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spend <user-id> <amount>",
		Short: "Spend tokens from a user's balance",
		Long: `Debit tokens from a user's ledger balance, typically for a charity
donation. The spend is rejected outright if the balance is insufficient.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var amount int64
			if _, err := fmt.Sscanf(args[1], "%d", &amount); err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			charity, _ := cmd.Flags().GetString("charity")
			description, _ := cmd.Flags().GetString("description")
			source := "charity:" + charity

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn, err := store.Spend(ctx, args[0], amount, source, description)
			if errors.Is(err, common.ErrInsufficientFunds) {
				return fmt.Errorf("insufficient balance to spend %d tokens", amount)
			}
			if err != nil {
				return err
			}

			fmt.Printf("✅ Spent %d tokens (transaction %s)\n", txn.Amount, txn.ID)
			return nil
		},
	}

	cmd.Flags().String("charity", "general", "charity id the spend is directed to")
	cmd.Flags().String("description", "charity donation", "transaction description")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top earners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			accounts, err := store.Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts yet")
				return nil
			}

			fmt.Printf("%-4s %-24s %8s %8s\n", "#", "User", "Earned", "Balance")
			fmt.Println(strings.Repeat("-", 48))
			for i, acct := range accounts {
				fmt.Printf("%-4d %-24s %8d %8d\n", i+1, acct.UserID, acct.TotalEarned, acct.CurrentBalance)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 10, "number of accounts to show")
	return cmd
}
