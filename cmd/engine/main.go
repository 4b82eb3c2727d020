package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/paybridge/paybridge/internal/auth"
	"github.com/paybridge/paybridge/internal/config"
	"github.com/paybridge/paybridge/internal/engine"
	"github.com/paybridge/paybridge/internal/gateway"
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

	if cfg.Auth.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	if cfg.Engine.Owner == "" {
		log.Error("ENGINE_OWNER is required")
		os.Exit(1)
	}

	nc, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATS.URL,
		Name:           cfg.NATS.Name + "-engine",
		ReconnectWait:  cfg.NATS.ReconnectWait,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ConnectTimeout: cfg.NATS.ConnectTimeout,
	})
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	eng, err := engine.New(engine.Config{
		Owner:           cfg.Engine.Owner,
		SourceChain:     cfg.Engine.SourceChain,
		SupportedChains: cfg.Engine.SupportedChains,
		Publisher:       nc,
		Logger:          log,
	})
	if err != nil {
		log.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	var limiter *gateway.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		limiter = gateway.NewRateLimiter(rdb, cfg.Redis.RateLimitMax, cfg.Redis.RateLimitWindow)
		log.Info("rate limiting enabled", "redis", cfg.Redis.Addr)
	}

	gw := gateway.NewGateway(gateway.Config{
		Engine:  eng,
		Auth:    auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter: limiter,
		Logger:  log,
	})

	if err := gw.ConsumeEvents(nc); err != nil {
		log.Error("failed to subscribe to settlement events", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      gw.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("engine API listening", "addr", srv.Addr, "owner", cfg.Engine.Owner)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("engine stopped", "error", err)
		os.Exit(1)
	}
	log.Info("engine stopped")
}
