// Command server runs the lottery engine's HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainlot/lottery-engine/internal/app"
	"github.com/chainlot/lottery-engine/internal/config"
	"github.com/chainlot/lottery-engine/internal/httpapi"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/internal/storage/postgres"
	"github.com/chainlot/lottery-engine/internal/token"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New("lottery-engine", cfg.LogLevel, os.Stdout)
	log.WithField("addr", cfg.HTTPAddr).Info("starting lottery engine")

	var store storage.LotteryStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		log.Info("using postgres store")
	} else {
		log.Info("using in-memory store")
	}

	var modules []string
	if cfg.ModulesFile != "" {
		mc, err := config.LoadModulesConfig(cfg.ModulesFile)
		if err != nil {
			return err
		}
		modules = mc.Enabled()
		log.WithField("modules", modules).Info("module routing loaded")
	}

	bank := token.NewBank("bank", cfg.Custody)
	application, err := app.New(app.Options{
		Operator:         cfg.Operator,
		Custody:          cfg.Custody,
		FinalizeSchedule: cfg.FinalizeSchedule,
		Modules:          modules,
		Store:            store,
		Log:              log,
		ResolveToken: func(id string) (token.Token, error) {
			if id != bank.ID() {
				return nil, fmt.Errorf("unknown token %q", id)
			}
			return bank, nil
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PaymentTokenID != "" {
		tok, err := application.ResolveToken(cfg.PaymentTokenID)
		if err != nil {
			return err
		}
		if err := application.Registry.SetPaymentToken(ctx, cfg.Operator, tok); err != nil {
			return err
		}
		log.WithField("token", cfg.PaymentTokenID).Info("payment token configured")
	}

	if err := application.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer application.Scheduler.Stop()

	limiter := httpapi.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, log)
	handler := httpapi.NewHandler(application, log)
	handler = httpapi.LoggingMiddleware(log)(handler)
	handler = httpapi.MetricsMiddleware()(handler)
	handler = limiter.Handler(handler)
	handler = httpapi.AuthMiddleware([]byte(cfg.JWTSecret), log)(handler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
