package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	notificationBuffer      = 64
)

// SubscriberConfig configures the log subscription.
type SubscriberConfig struct {
	URL              string
	ProgramID        ledgerDomain.PublicKey
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// LogSubscriber opens logsSubscribe streams filtered to one program.
type LogSubscriber struct {
	cfg SubscriberConfig
}

// NewLogSubscriber creates a LogSubscriber.
func NewLogSubscriber(cfg SubscriberConfig) *LogSubscriber {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LogSubscriber{cfg: cfg}
}

// Subscription is one live logsSubscribe stream. Notifications is closed when the stream
// ends; Err then reports why.
type Subscription struct {
	conn          *ws.Client
	sub           *ws.LogSubscription
	notifications chan ledgerDomain.LogNotification
	cancel        context.CancelFunc
	done          chan struct{}
	logger        *slog.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Subscribe dials the websocket endpoint and subscribes, at confirmed commitment, to the
// logs of every transaction that mentions the program. The connection keeps itself alive
// with pings.
func (s *LogSubscriber) Subscribe(ctx context.Context) (*Subscription, error) {
	conn, err := ws.ConnectWithOptions(ctx, s.cfg.URL, &ws.Options{HandshakeTimeout: s.cfg.HandshakeTimeout})
	if err != nil {
		return nil, errors.Wrap(ledgerDomain.ErrSubscriptionClosed, err.Error())
	}

	logs, err := conn.LogsSubscribeMentions(solana.PublicKey(s.cfg.ProgramID), CommitmentConfirmed)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(ledgerDomain.ErrSubscriptionClosed, err.Error())
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		conn:          conn,
		sub:           logs,
		notifications: make(chan ledgerDomain.LogNotification, notificationBuffer),
		cancel:        cancel,
		done:          make(chan struct{}),
		logger:        s.cfg.Logger,
	}
	sub.wg.Add(1)
	go sub.readLoop(recvCtx)

	s.cfg.Logger.Info("log subscription requested", slog.String("program", s.cfg.ProgramID.String()))
	return sub, nil
}

// Open is Subscribe behind the ledgerDomain.LogStream interface.
func (s *LogSubscriber) Open(ctx context.Context) (ledgerDomain.LogStream, error) {
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Notifications streams one entry per transaction that mentions the program.
func (s *Subscription) Notifications() <-chan ledgerDomain.LogNotification {
	return s.notifications
}

// Err reports why the stream ended. It is nil while the stream is live and after Close.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close ends the subscription and waits for its reader to exit.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.conn.Close()
	})
	s.wg.Wait()
	return nil
}

func (s *Subscription) fail(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	select {
	case <-s.done:
		// closed by the caller; not a failure
	default:
		if s.err == nil {
			s.err = errors.Wrap(ledgerDomain.ErrSubscriptionClosed, err.Error())
		}
	}
}

func (s *Subscription) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.notifications)

	for {
		result, err := s.sub.Recv(ctx)
		if err != nil {
			s.fail(err)
			return
		}
		if result == nil {
			s.fail(ws.ErrSubscriptionClosed)
			return
		}

		notification := ledgerDomain.LogNotification{
			Signature: result.Value.Signature.String(),
			Slot:      result.Context.Slot,
			Logs:      result.Value.Logs,
			Failed:    result.Value.Err != nil,
		}

		select {
		case s.notifications <- notification:
		case <-s.done:
			return
		}
	}
}
