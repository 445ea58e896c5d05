package main

import (
	"context"
	"fmt"
	"os"

	"digistore/internal/app"
	"digistore/internal/config"
	"digistore/internal/model"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// orderLedger is the part of the ledger the admin commands use.
type orderLedger interface {
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
	Refresh(ctx context.Context) (int, error)
}

// ledgerOpener opens the ledger and returns a function releasing it.
type ledgerOpener func(ctx context.Context) (orderLedger, func(), error)

func main() {
	if err := newRootCmd(openLedger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open ledgerOpener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "digistorectl",
		Short:         "Administer the DigiStore order ledger and catalog",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(ordersCmd(open))
	rootCmd.AddCommand(snapshotCmd(open))
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(referenceCmd())

	return rootCmd
}

func openLedger(ctx context.Context) (orderLedger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger).Level(zerolog.WarnLevel)
	store, closeFn, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, closeFn, nil
}
