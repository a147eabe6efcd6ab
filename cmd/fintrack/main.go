package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

const (
	shutdownTimeout    = 30 * time.Second
	amqpConnectTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("fintrack exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.Open(ctx, backendCfg, logger.With(log.FieldComponent, log.ComponentBackend).Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client := amqp.New(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		connectCtx, cancel := context.WithTimeout(ctx, amqpConnectTimeout)
		if err := client.Reconnect(connectCtx); err != nil {
			logger.WithComponent(log.ComponentAMQP).Warn("AMQP broker unreachable at startup, will retry on publish",
				"exchange", cfg.AMQPExchange, log.FieldError, err)
		} else {
			logger.WithComponent(log.ComponentAMQP).Info("Connected to AMQP broker", "exchange", cfg.AMQPExchange)
		}
		cancel()
		defer client.Close()
		events = client
	}

	m := metrics.New()
	svc := services.NewTransactionService(store.Store, events).WithRecorder(m)
	sessions := auth.NewSessionProvider(cfg.SessionSecret, cfg.SessionCookie, cfg.SessionIssuer, cfg.SessionTTL)
	srv := apphttp.NewServer(":"+cfg.Port, svc, sessions, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Metrics:            m,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "addr", srv.Addr, "backend", cfg.DataBackend, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info("Server stopped", log.FieldOperation, log.OpShutdown)
		return nil
	})
	return g.Wait()
}
