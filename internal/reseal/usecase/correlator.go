package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jpillora/backoff"

	"github.com/chainsensors/capsules/internal/database"
	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
	"github.com/chainsensors/capsules/internal/metrics"
	outboxDomain "github.com/chainsensors/capsules/internal/outbox/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

const (
	correlatorMetricsDomain = "correlator"
	defaultDedupSize        = 4096
	defaultReconnectMin     = 500 * time.Millisecond
	defaultReconnectMax     = 30 * time.Second
)

// QualityScoreHandler receives the accuracy scoring results that share the program log.
type QualityScoreHandler func(ctx context.Context, signature string, event *ledgerDomain.QualityScoreEvent)

// CorrelatorConfig configures the event correlator.
type CorrelatorConfig struct {
	ProgramID ledgerDomain.PublicKey
	// DedupSize bounds both the delivered-event cache and the parked-event cache.
	DedupSize      int
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	OnQualityScore QualityScoreHandler
}

type correlationKey struct {
	listing ledgerDomain.PublicKey
	record  ledgerDomain.PublicKey
}

type deliveryKey struct {
	signature string
	key       correlationKey
	nonce     [16]byte
}

type keyLock struct {
	sync.Mutex
	refs int
}

type correlator struct {
	config          CorrelatorConfig
	source          LogSource
	txManager       database.TxManager
	requests        RequestRepository
	results         ResealedCapsuleRepository
	outbox          OutboxRepository
	businessMetrics metrics.BusinessMetrics
	logger          *slog.Logger

	delivered *lru.Cache[deliveryKey, struct{}]
	parked    *lru.Cache[correlationKey, ledgerDomain.Event]

	mu       sync.Mutex
	locks    map[correlationKey]*keyLock
	expected map[correlationKey]uuid.UUID
	waiters  map[correlationKey][]chan *resealDomain.ResealedCapsule
}

// NewCorrelator creates a Correlator reading events from source.
func NewCorrelator(
	config CorrelatorConfig,
	source LogSource,
	txManager database.TxManager,
	requests RequestRepository,
	results ResealedCapsuleRepository,
	outbox OutboxRepository,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) (Correlator, error) {
	if config.DedupSize <= 0 {
		config.DedupSize = defaultDedupSize
	}
	if config.ReconnectMin <= 0 {
		config.ReconnectMin = defaultReconnectMin
	}
	if config.ReconnectMax < config.ReconnectMin {
		config.ReconnectMax = max(defaultReconnectMax, config.ReconnectMin)
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	delivered, err := lru.New[deliveryKey, struct{}](config.DedupSize)
	if err != nil {
		return nil, err
	}
	c := &correlator{
		config:          config,
		source:          source,
		txManager:       txManager,
		requests:        requests,
		results:         results,
		outbox:          outbox,
		businessMetrics: businessMetrics,
		logger:          logger,
		delivered:       delivered,
		locks:           make(map[correlationKey]*keyLock),
		expected:        make(map[correlationKey]uuid.UUID),
		waiters:         make(map[correlationKey][]chan *resealDomain.ResealedCapsule),
	}
	c.parked, err = lru.NewWithEvict[correlationKey, ledgerDomain.Event](
		config.DedupSize,
		func(key correlationKey, ev ledgerDomain.Event) {
			c.logger.Warn("dropping parked reseal output",
				slog.String("listing", key.listing.String()),
				slog.String("record", key.record.String()),
				slog.String("signature", ev.Signature),
			)
		},
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// lock serializes work on one correlation key.
func (c *correlator) lock(key correlationKey) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

// Expect registers requestID as the owner of (listing, record). A parked result is
// delivered right away; a result delivered before registration completes the request.
func (c *correlator) Expect(ctx context.Context, requestID uuid.UUID, listing, record ledgerDomain.PublicKey) {
	key := correlationKey{listing: listing, record: record}
	unlock := c.lock(key)
	defer unlock()

	if ev, ok := c.parked.Peek(key); ok {
		c.parked.Remove(key)
		out := ev.Payload.(*ledgerDomain.ResealOutput)
		if err := c.deliver(ctx, key, ev, out, requestID); err != nil {
			c.logger.Error("failed to deliver parked reseal output",
				slog.String("request_id", requestID.String()),
				slog.Any("error", err),
			)
			c.parked.Add(key, ev)
			return
		}
		c.delivered.Add(deliveryKey{signature: ev.Signature, key: key, nonce: out.Nonce}, struct{}{})
		return
	}

	result, err := c.results.GetLatestByRecord(ctx, record)
	if err == nil && result.ListingID == listing && result.RequestID != nil && *result.RequestID == requestID {
		if err := c.complete(ctx, requestID); err != nil {
			c.logger.Error("failed to complete reseal request",
				slog.String("request_id", requestID.String()),
				slog.Any("error", err),
			)
		}
		return
	}

	c.mu.Lock()
	c.expected[key] = requestID
	c.mu.Unlock()
}

// Wait blocks until a result for (listing, record) is delivered. The waiter is registered
// before the repository is checked so a concurrent delivery cannot be missed.
func (c *correlator) Wait(
	ctx context.Context,
	listing, record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	key := correlationKey{listing: listing, record: record}
	ch := make(chan *resealDomain.ResealedCapsule, 1)

	c.mu.Lock()
	c.waiters[key] = append(c.waiters[key], ch)
	c.mu.Unlock()
	defer c.removeWaiter(key, ch)

	result, err := c.results.GetLatestByRecord(ctx, record)
	switch {
	case err == nil && result.ListingID == listing:
		return result, nil
	case err != nil && !errors.Is(err, resealDomain.ErrResealedCapsuleNotFound):
		return nil, err
	}

	select {
	case result := <-ch:
		return result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, resealDomain.ErrWaitTimeout
		}
		return nil, ctx.Err()
	}
}

func (c *correlator) removeWaiter(key correlationKey, ch chan *resealDomain.ResealedCapsule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiters := c.waiters[key]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(c.waiters, key)
		return
	}
	c.waiters[key] = waiters
}

func (c *correlator) notify(key correlationKey, result *resealDomain.ResealedCapsule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.waiters[key] {
		select {
		case ch <- result:
		default:
		}
	}
}

// Run registers the requests still awaiting a result and consumes the log subscription
// until ctx ends. Every lost subscription is a gap: events emitted while disconnected are
// not replayed.
func (c *correlator) Run(ctx context.Context) error {
	awaiting, err := c.requests.ListAwaitingResult(ctx)
	if err != nil {
		c.logger.Error("failed to load requests awaiting results", slog.Any("error", err))
	}
	for _, req := range awaiting {
		c.Expect(ctx, req.ID, req.ListingID, req.RecordID)
	}

	b := &backoff.Backoff{
		Min:    c.config.ReconnectMin,
		Max:    c.config.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		stream, err := c.source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := b.Duration()
			c.logger.Warn("log subscription failed",
				slog.Any("error", err),
				slog.Duration("retry_in", delay),
			)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}

		b.Reset()
		err = c.consume(ctx, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return nil
		}

		delay := b.Duration()
		c.logger.Warn("subscription gap",
			slog.Any("error", err),
			slog.Duration("retry_in", delay),
		)
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "subscription_gap", "error")
		if !sleep(ctx, delay) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *correlator) consume(ctx context.Context, stream ledgerDomain.LogStream) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-stream.Notifications():
			if !ok {
				if err := stream.Err(); err != nil {
					return err
				}
				return ledgerDomain.ErrSubscriptionClosed
			}
			c.handleNotification(ctx, n)
		}
	}
}

func (c *correlator) handleNotification(ctx context.Context, n ledgerDomain.LogNotification) {
	events, err := ledgerService.ParseLogs(c.config.ProgramID, n)
	if err != nil {
		c.logger.Warn("malformed program event",
			slog.String("signature", n.Signature),
			slog.Any("error", err),
		)
	}

	for _, ev := range events {
		switch payload := ev.Payload.(type) {
		case *ledgerDomain.ResealOutput:
			c.handleResealOutput(ctx, ev, payload)
		case *ledgerDomain.QualityScoreEvent:
			c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "quality_score", "success")
			if c.config.OnQualityScore != nil {
				c.config.OnQualityScore(ctx, ev.Signature, payload)
			}
		case *ledgerDomain.PurchaseSealed:
			c.handlePurchaseSealed(ctx, ev, payload)
		}
	}
}

func (c *correlator) handleResealOutput(ctx context.Context, ev ledgerDomain.Event, out *ledgerDomain.ResealOutput) {
	key := correlationKey{listing: out.Listing, record: out.Record}
	dedup := deliveryKey{signature: ev.Signature, key: key, nonce: out.Nonce}
	logger := c.logger.With(
		slog.String("listing", out.Listing.String()),
		slog.String("record", out.Record.String()),
		slog.String("signature", ev.Signature),
	)

	if c.delivered.Contains(dedup) {
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "reseal_output", "duplicate")
		return
	}

	unlock := c.lock(key)
	defer unlock()

	c.mu.Lock()
	requestID, ok := c.expected[key]
	c.mu.Unlock()

	if !ok {
		req, err := c.requests.GetLatestByRecord(ctx, out.Record)
		switch {
		case err == nil && req.ListingID == out.Listing && req.Status == resealDomain.RequestStatusCompleted:
			logger.Warn("late reseal output for completed request", slog.String("request_id", req.ID.String()))
			c.delivered.Add(dedup, struct{}{})
			c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "reseal_output", "late")
			return
		case err == nil && req.ListingID == out.Listing && req.Status != resealDomain.RequestStatusBuilt:
			requestID = req.ID
		case err != nil && !errors.Is(err, resealDomain.ErrRequestNotFound):
			logger.Error("failed to look up reseal request", slog.Any("error", err))
		}
	}

	if requestID == uuid.Nil {
		logger.Info("parking reseal output for unregistered purchase")
		c.parked.Add(key, ev)
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "reseal_output", "parked")
		return
	}

	if err := c.deliver(ctx, key, ev, out, requestID); err != nil {
		logger.Error("failed to deliver reseal output", slog.Any("error", err))
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "reseal_output", "error")
		return
	}
	c.delivered.Add(dedup, struct{}{})
}

// deliver persists the result, completes the request and queues finalization in one
// transaction, then wakes the waiters. A result already stored is not delivered again.
func (c *correlator) deliver(
	ctx context.Context,
	key correlationKey,
	ev ledgerDomain.Event,
	out *ledgerDomain.ResealOutput,
	requestID uuid.UUID,
) error {
	result := resealDomain.NewResealedCapsule(out, ev.Signature, ev.Slot)
	result.RequestID = &requestID

	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := c.results.Create(ctx, result); err != nil {
			return err
		}
		if err := c.complete(ctx, requestID); err != nil {
			return err
		}

		event, err := outboxDomain.NewOutboxEvent(resealDomain.EventTypeResealOutput, &resealDomain.ResealOutputPayload{
			ResealedCapsuleID: result.ID,
			Listing:           out.Listing.String(),
			Record:            out.Record.String(),
			Signature:         ev.Signature,
		})
		if err != nil {
			return err
		}
		return c.outbox.Create(ctx, event)
	})
	if errors.Is(err, resealDomain.ErrDuplicateDelivery) {
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "reseal_output", "duplicate")
		return nil
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.expected[key] == requestID {
		delete(c.expected, key)
	}
	c.mu.Unlock()

	c.notify(key, result)
	c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "reseal_output", "success")
	c.logger.Info("reseal output delivered",
		slog.String("request_id", requestID.String()),
		slog.String("resealed_capsule_id", result.ID.String()),
		slog.String("signature", ev.Signature),
	)
	return nil
}

func (c *correlator) complete(ctx context.Context, requestID uuid.UUID) error {
	req, err := c.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.Status.CanTransition(resealDomain.RequestStatusCompleted) {
		return nil
	}
	if err := req.Transition(resealDomain.RequestStatusCompleted); err != nil {
		return err
	}
	return c.requests.Update(ctx, req)
}

func (c *correlator) handlePurchaseSealed(ctx context.Context, ev ledgerDomain.Event, sealed *ledgerDomain.PurchaseSealed) {
	err := c.results.MarkFinalized(ctx, sealed.Listing, sealed.Record, sealed.CID)
	switch {
	case err == nil:
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "purchase_sealed", "success")
	case errors.Is(err, resealDomain.ErrResealedCapsuleNotFound):
		c.logger.Debug("purchase sealed without a local result",
			slog.String("record", sealed.Record.String()),
			slog.String("signature", ev.Signature),
		)
	default:
		c.logger.Error("failed to mark purchase finalized",
			slog.String("record", sealed.Record.String()),
			slog.Any("error", err),
		)
		c.businessMetrics.RecordOperation(ctx, correlatorMetricsDomain, "purchase_sealed", "error")
	}
}
