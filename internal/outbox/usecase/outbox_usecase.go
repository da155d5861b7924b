// Package usecase runs the transactional outbox: pending events are claimed in a
// transaction, handed to the processor registered for their type and marked processed or
// scheduled for retry.
package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chainsensors/capsules/internal/database"
	"github.com/chainsensors/capsules/internal/metrics"
	"github.com/chainsensors/capsules/internal/outbox/domain"
)

// Config holds outbox use case configuration
type Config struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	RetryInterval time.Duration
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
}

// EventProcessor handles one event type.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) error
}

// OutboxUseCase implements business logic for processing outbox events
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	metrics        metrics.BusinessMetrics
	logger         *slog.Logger
	now            func() time.Time
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *OutboxUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		metrics:        businessMetrics,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start starts the outbox event processing loop
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox event processor",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox event processor")
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil {
				uc.logger.Error("failed to process events", slog.Any("error", err))
			}
		}
	}
}

// ProcessEvents retrieves and processes pending events from the outbox in a transaction
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.outboxRepo.GetPendingEvents(ctx, uc.config.BatchSize)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		uc.logger.Debug("processing events", slog.Int("count", len(events)))

		for _, event := range events {
			if err := uc.processEvent(ctx, event); err != nil {
				event.MarkRetry(err, uc.now(), uc.config.MaxRetries, uc.config.RetryInterval)
				uc.logger.Error("failed to process event",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("retries", event.Retries),
					slog.String("status", string(event.Status)),
					slog.Any("error", err),
				)
				if err := uc.outboxRepo.Update(ctx, event); err != nil {
					return err
				}
				continue
			}

			event.MarkProcessed(uc.now())
			if err := uc.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
		}

		return nil
	})
}

func (uc *OutboxUseCase) processEvent(ctx context.Context, event *domain.OutboxEvent) error {
	start := time.Now()
	err := uc.eventProcessor.Process(ctx, event)
	metrics.Observe(ctx, uc.metrics, "outbox", event.EventType, start, err)
	return err
}

// Dispatcher routes events to the processor registered for their type. Events of an
// unregistered type fail with ErrUnknownEventType.
type Dispatcher struct {
	mu         sync.RWMutex
	processors map[string]EventProcessor
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{processors: make(map[string]EventProcessor)}
}

// Register sets the processor for eventType, replacing any previous one.
func (d *Dispatcher) Register(eventType string, processor EventProcessor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processors[eventType] = processor
}

// Process implements EventProcessor.
func (d *Dispatcher) Process(ctx context.Context, event *domain.OutboxEvent) error {
	d.mu.RLock()
	processor, ok := d.processors[event.EventType]
	d.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownEventType
	}
	return processor.Process(ctx, event)
}
