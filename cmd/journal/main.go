package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/paybridge/paybridge/internal/config"
	"github.com/paybridge/paybridge/internal/journal"
	"github.com/paybridge/paybridge/pkg/logging"
	"github.com/paybridge/paybridge/pkg/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.Journal.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Journal.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	j := journal.New(db, log)
	if err := j.Migrate(ctx); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	nc, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATS.URL,
		Name:           cfg.NATS.Name + "-journal",
		ReconnectWait:  cfg.NATS.ReconnectWait,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ConnectTimeout: cfg.NATS.ConnectTimeout,
	})
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	if err := j.Run(ctx, nc); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("journal stopped", "error", err)
		os.Exit(1)
	}
	log.Info("journal stopped")
}
