package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paybridge/paybridge/internal/config"
	"github.com/paybridge/paybridge/internal/relayer"
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

	if cfg.Relayer.Chain == 0 {
		log.Error("RELAYER_CHAIN is required")
		os.Exit(1)
	}
	if cfg.Relayer.Token == "" {
		log.Error("RELAYER_TOKEN is required")
		os.Exit(1)
	}

	nc, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATS.URL,
		Name:           fmt.Sprintf("%s-relayer-%d", cfg.NATS.Name, cfg.Relayer.Chain),
		ReconnectWait:  cfg.NATS.ReconnectWait,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ConnectTimeout: cfg.NATS.ConnectTimeout,
	})
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	worker := relayer.New(relayer.Config{
		Chain:     cfg.Relayer.Chain,
		EngineURL: cfg.Relayer.EngineURL,
		Token:     cfg.Relayer.Token,
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx, nc); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("relayer stopped", "error", err)
		os.Exit(1)
	}
	log.Info("relayer stopped")
}
