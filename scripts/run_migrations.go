package main

import (
	"context"
	"fmt"
	"os"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/migrations"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/run_migrations.go [up|down|status|version|reset]")
		os.Exit(2)
	}

	command := os.Args[1]
	switch command {
	case "up", "down", "status", "version", "reset":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", command)

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "load config", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logg.Error(ctx, "connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, command, os.Args[2:]...); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrations complete")
}
