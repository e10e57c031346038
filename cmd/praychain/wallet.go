package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/przemek890/Praychain/internal/common"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage settlement wallet addresses",
	}

	cmd.AddCommand(walletSetCmd())
	cmd.AddCommand(walletShowCmd())
	return cmd
}

func walletSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <user-id> <address>",
		Short: "Set the wallet address awards are settled to",
		Long: `Associate an on-chain wallet address with a user. Future awards for the
user are mirrored to this address by the settlement bridge. Pass an empty
address to disable settlement for future awards.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetWalletAddress(ctx, args[0], args[1]); err != nil {
				return err
			}

			if args[1] == "" {
				fmt.Printf("Settlement disabled for %s\n", args[0])
			} else {
				fmt.Printf("Wallet for %s set to %s\n", args[0], args[1])
			}
			return nil
		},
	}
}

func walletShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user's wallet address",
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

			if acct.WalletAddress == "" {
				fmt.Printf("%s has no wallet configured; awards stay in the internal ledger\n", args[0])
				return nil
			}
			fmt.Println(acct.WalletAddress)
			return nil
		},
	}
}
