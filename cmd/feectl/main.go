package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/desblooms/school-crm-sub000/internal/bootstrap"
	"github.com/desblooms/school-crm-sub000/internal/cli"
	"github.com/desblooms/school-crm-sub000/internal/config"
)

func main() {
	rootCmd := cli.NewRootCmd(openLedger)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openLedger(ctx context.Context) (cli.Ledger, *time.Location, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// One session is enough for a single command
	cfg.Database.Sessions = 1
	cfg.Logger.Level = "warn"

	logger, err := bootstrap.NewLogger(cfg.Logger)
	if err != nil {
		logger = zap.NewNop()
	}

	l, err := bootstrap.NewLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return l.Pool, l.Location, nil
}
