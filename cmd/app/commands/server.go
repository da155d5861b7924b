package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/chainsensors/capsules/internal/app"
	"github.com/chainsensors/capsules/internal/config"
	outboxUsecase "github.com/chainsensors/capsules/internal/outbox/usecase"
	resealUseCase "github.com/chainsensors/capsules/internal/reseal/usecase"
)

// RunServer starts the API server, the metrics server, the event correlator and the
// finalize outbox worker, and blocks until SIGINT/SIGTERM or until one of them fails.
// Shutdown of the servers is bounded by DBConnMaxLifetime.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown container", slog.Any("error", err))
		}
	}()

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	var correlator resealUseCase.Correlator
	if cfg.CorrelatorEnabled {
		if correlator, err = container.Correlator(); err != nil {
			return fmt.Errorf("failed to initialize correlator: %w", err)
		}
	}

	var outbox outboxUsecase.UseCase
	if cfg.OutboxEnabled {
		if outbox, err = container.OutboxUseCase(); err != nil {
			return fmt.Errorf("failed to initialize outbox worker: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(groupCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	if correlator != nil {
		group.Go(func() error {
			return correlator.Run(groupCtx)
		})
	}

	if outbox != nil {
		group.Go(func() error {
			if err := outbox.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox worker error: %w", err)
			}
			return nil
		})
	}

	// The servers only return once shut down, so they are stopped when the group context
	// ends for any reason.
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return group.Wait()
}
