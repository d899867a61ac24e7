package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/metrics"
	chiTransport "github.com/kailas-cloud/recherche/internal/transport/chi"
	"github.com/kailas-cloud/recherche/internal/transport/messaging"
	healthuc "github.com/kailas-cloud/recherche/internal/usecase/health"
)

func serveCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the person event consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *env)
		},
	}
}

func serve(parent context.Context, env string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	// Pass nil interface (not a typed nil pointer) when the consumer is disabled.
	var bus healthuc.BusChecker
	if a.cfg.Messaging.Enabled {
		consumer := messaging.NewConsumer(messaging.Config{
			URL:     a.cfg.Messaging.URL,
			Stream:  a.cfg.Messaging.Stream,
			Subject: a.cfg.Messaging.Subject,
			Queue:   a.cfg.Messaging.Queue,
			Durable: a.cfg.Messaging.Durable,
			AckWait: a.cfg.Messaging.AckWait,
		}, a.documents, logger)
		if err := consumer.Connect(); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("Error closing consumer", zap.Error(err))
			}
		}()
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		bus = consumer
	}

	health := healthuc.New(a.store, bus)
	server := chiTransport.NewServer(a.documents, a.search, a.ramper, health, logger,
		chiTransport.WithLoadDefaults(a.loadConfig()),
		chiTransport.WithRunContext(ctx),
	)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:  a.cfg.Auth.APIKeys,
		Metrics:  metrics.NewHTTP(a.registry),
		Gatherer: a.registry,
		Logger:   logger,
	})

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
	return nil
}
