package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/przemek890/Praychain/internal/settlement"
)

func settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Process pending settlement transfers",
		Long: `Drain the settlement outbox: every pending award with a configured wallet
address gets one transfer attempt against the treasury service. Failed
transfers are recorded on the transaction and logged; the ledger award is
never reversed.`,
		RunE: runSettle,
	}

	cmd.Flags().Bool("watch", false, "keep polling the outbox instead of exiting when drained")

	return cmd
}

func runSettle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	watch, _ := cmd.Flags().GetBool("watch")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	treasury, err := settlement.NewHTTPTreasury(settlement.TreasuryConfig{
		BaseURL: viper.GetString("treasury.base_url"),
		APIKey:  viper.GetString("treasury.api_key"),
		Timeout: viper.GetDuration("treasury.timeout"),
	})
	if err != nil {
		return err
	}

	bridge := settlement.NewBridge(store, treasury, slog.Default())

	if watch {
		err := bridge.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	return bridge.Drain(ctx)
}
