// Package mpcnet is an in-process stand-in for the ledger and the MPC network behind it.
//
// A Network accepts the marketplace instructions the pipeline submits, executes them the
// way the deployed program does and publishes the resulting program logs to every open
// subscription. reseal_dek opens the submitted capsule with the network key, seals the DEK
// to the buyer key under the call nonce and emits ResealOutput in a separate callback
// transaction. finalize_purchase writes the buyer capsule identifier once and emits
// PurchaseSealed.
//
// Faults are injected explicitly: failed submissions, lost acknowledgements, held
// callbacks and dropped subscriptions.
package mpcnet

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
)

const streamBuffer = 64

// ErrPurchaseSealed is returned by finalize_purchase when the record already holds a cid.
var ErrPurchaseSealed = errors.Wrap(ledgerDomain.ErrTransactionRejected, "purchase already sealed")

// Network implements the submission and subscription ports of the resealing pipeline.
type Network struct {
	programID ledgerDomain.PublicKey
	signer    ledgerDomain.PublicKey
	mxeKey    [cryptoDomain.PublicKeySize]byte
	mxePublic [cryptoDomain.PublicKeySize]byte
	sealer    *cryptoService.X25519Sealer
	logger    *slog.Logger

	mu          sync.Mutex
	slot        uint64
	offsets     map[uint64]struct{}
	sealed      map[ledgerDomain.PublicKey]string
	streams     map[*stream]struct{}
	held        []ledgerDomain.LogNotification
	holding     bool
	failSubmits []error
	lostAcks    []error
	failOpens   int
	submissions int
	aborted     int
}

// New creates a Network for programID whose submissions are signed by signer. The network
// key pair is generated fresh.
func New(programID, signer ledgerDomain.PublicKey, logger *slog.Logger) (*Network, error) {
	priv, pub, err := cryptoService.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Network{
		programID: programID,
		signer:    signer,
		mxeKey:    priv,
		mxePublic: pub,
		sealer:    cryptoService.NewCapsuleSealer(),
		logger:    logger,
		offsets:   make(map[uint64]struct{}),
		sealed:    make(map[ledgerDomain.PublicKey]string),
		streams:   make(map[*stream]struct{}),
	}, nil
}

// MXEPublicKey is the key devices seal their capsules to.
func (n *Network) MXEPublicKey() [cryptoDomain.PublicKeySize]byte {
	return n.mxePublic
}

// Signer returns the payer every submission is attributed to.
func (n *Network) Signer() ledgerDomain.PublicKey {
	return n.signer
}

// Submit executes the instructions atomically. A reused computation offset fails the whole
// transaction with ErrAccountInUse, as the program's account initialisation does.
func (n *Network) Submit(
	ctx context.Context,
	instructions ...ledgerDomain.Instruction,
) (ledgerDomain.Signature, error) {
	if err := ctx.Err(); err != nil {
		return ledgerDomain.Signature{}, errors.Wrap(ledgerDomain.ErrRPCTimeout, err.Error())
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.submissions++
	if len(n.failSubmits) > 0 {
		err := n.failSubmits[0]
		n.failSubmits = n.failSubmits[1:]
		return ledgerDomain.Signature{}, err
	}

	signature, err := n.execute(instructions)
	if err != nil {
		return ledgerDomain.Signature{}, err
	}

	if len(n.lostAcks) > 0 {
		err := n.lostAcks[0]
		n.lostAcks = n.lostAcks[1:]
		return ledgerDomain.Signature{}, err
	}
	return signature, nil
}

// execute validates every instruction before applying any of them.
func (n *Network) execute(instructions []ledgerDomain.Instruction) (ledgerDomain.Signature, error) {
	if len(instructions) == 0 {
		return ledgerDomain.Signature{}, errors.Wrap(ledgerDomain.ErrInvalidTransaction, "no instructions")
	}

	var (
		apply     []func() []string
		callbacks []ledgerDomain.LogNotification
	)
	claimed := make(map[uint64]struct{})
	for _, ix := range instructions {
		if ix.ProgramID != n.programID {
			return ledgerDomain.Signature{}, errors.Wrapf(
				ledgerDomain.ErrTransactionRejected, "unknown program %s", ix.ProgramID,
			)
		}

		switch ledgerService.InstructionName(ix.Data) {
		case ledgerService.InstructionResealDek:
			args, accounts, err := ledgerService.DecodeResealDek(ix)
			if err != nil {
				return ledgerDomain.Signature{}, errors.Wrap(ledgerDomain.ErrTransactionRejected, err.Error())
			}
			if accounts.Payer != n.signer {
				return ledgerDomain.Signature{}, ledgerDomain.ErrMissingSigner
			}
			_, used := n.offsets[args.ComputationOffset]
			_, dup := claimed[args.ComputationOffset]
			if used || dup {
				return ledgerDomain.Signature{}, errors.Wrapf(
					ledgerDomain.ErrAccountInUse, "computation offset %d", args.ComputationOffset,
				)
			}
			claimed[args.ComputationOffset] = struct{}{}
			apply = append(apply, func() []string {
				n.offsets[args.ComputationOffset] = struct{}{}
				if callback, ok := n.compute(args, accounts); ok {
					callbacks = append(callbacks, callback)
				}
				return []string{"Program log: Instruction: ResealDek", "Program log: computation queued"}
			})

		case ledgerService.InstructionFinalizePurchase:
			cid, accounts, err := ledgerService.DecodeFinalizePurchase(ix)
			if err != nil {
				return ledgerDomain.Signature{}, errors.Wrap(ledgerDomain.ErrTransactionRejected, err.Error())
			}
			if accounts.Authority != n.signer {
				return ledgerDomain.Signature{}, ledgerDomain.ErrMissingSigner
			}
			if _, ok := n.sealed[accounts.PurchaseRecord]; ok {
				return ledgerDomain.Signature{}, ErrPurchaseSealed
			}
			apply = append(apply, func() []string {
				n.sealed[accounts.PurchaseRecord] = cid
				line, _ := ledgerService.EventLogLine(&ledgerDomain.PurchaseSealed{
					Listing:   accounts.ListingState,
					Record:    accounts.PurchaseRecord,
					CID:       cid,
					Authority: accounts.Authority,
					Timestamp: time.Now().Unix(),
				})
				return []string{"Program log: Instruction: FinalizePurchase", line}
			})

		default:
			return ledgerDomain.Signature{}, errors.Wrap(ledgerDomain.ErrTransactionRejected, "unknown instruction")
		}
	}

	signature := newSignature()
	logs := make([]string, 0, 4*len(apply))
	for _, fn := range apply {
		logs = append(logs, n.invoke())
		logs = append(logs, fn()...)
		logs = append(logs, n.success())
	}
	n.publish(ledgerDomain.LogNotification{Signature: signature.String(), Logs: logs})

	for _, callback := range callbacks {
		if n.holding {
			n.held = append(n.held, callback)
			continue
		}
		n.publish(callback)
	}
	return signature, nil
}

// compute runs the reseal circuit and returns its callback transaction. A capsule the
// network key cannot open aborts the computation without an event.
func (n *Network) compute(
	args *ledgerService.ResealDekArgs,
	accounts *ledgerService.ResealDekAccounts,
) (ledgerDomain.LogNotification, bool) {
	logger := n.logger.With(
		slog.String("record", accounts.PurchaseRecord.String()),
		slog.Uint64("offset", args.ComputationOffset),
	)

	dek, err := n.sealer.Open(n.mxeKey, &cryptoDomain.SealedCapsule{
		Nonce: args.Nonce,
		Limbs: args.Limbs,
	})
	if err != nil {
		n.aborted++
		logger.Warn("reseal computation aborted", slog.Any("error", err))
		return ledgerDomain.LogNotification{}, false
	}
	defer cryptoDomain.Zero32(&dek)

	resealed, err := n.sealer.SealWithNonce(args.BuyerX25519, dek, args.Nonce)
	if err != nil {
		n.aborted++
		logger.Warn("reseal computation aborted", slog.Any("error", err))
		return ledgerDomain.LogNotification{}, false
	}

	out := &ledgerDomain.ResealOutput{
		Listing:       accounts.ListingState,
		Record:        accounts.PurchaseRecord,
		EncryptionKey: resealed.SenderPublicKey(),
		Nonce:         resealed.Nonce,
		Limbs:         resealed.Limbs,
	}
	line, err := ledgerService.EventLogLine(out)
	if err != nil {
		n.aborted++
		return ledgerDomain.LogNotification{}, false
	}

	return ledgerDomain.LogNotification{
		Signature: newSignature().String(),
		Logs: []string{
			n.invoke(),
			"Program log: Instruction: ResealDekCallback",
			line,
			n.success(),
		},
	}, true
}

func (n *Network) invoke() string {
	return fmt.Sprintf("Program %s invoke [1]", n.programID)
}

func (n *Network) success() string {
	return fmt.Sprintf("Program %s success", n.programID)
}

// publish stamps the next slot and fans the notification out. Must hold n.mu.
func (n *Network) publish(notification ledgerDomain.LogNotification) {
	n.slot++
	notification.Slot = n.slot
	for s := range n.streams {
		if !s.deliver(notification) {
			delete(n.streams, s)
		}
	}
}

// Emit publishes a raw notification, for logs of other programs or hand-built events.
func (n *Network) Emit(notification ledgerDomain.LogNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publish(notification)
}

// FailNextSubmit makes the next submission return err without executing.
func (n *Network) FailNextSubmit(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failSubmits = append(n.failSubmits, err)
}

// LoseNextAck makes the next submission execute and then return err, as when the
// transaction lands but the response never reaches the client.
func (n *Network) LoseNextAck(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lostAcks = append(n.lostAcks, err)
}

// Hold queues computation callbacks until Release.
func (n *Network) Hold() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.holding = true
}

// Release publishes the queued callbacks in order and stops holding.
func (n *Network) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.holding = false
	held := n.held
	n.held = nil
	for _, notification := range held {
		n.publish(notification)
	}
}

// DropStreams ends every open subscription with ErrSubscriptionClosed.
func (n *Network) DropStreams() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.streams {
		s.end(errors.Wrap(ledgerDomain.ErrSubscriptionClosed, "connection reset"))
		delete(n.streams, s)
	}
}

// FailOpens makes the next count subscription attempts fail.
func (n *Network) FailOpens(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failOpens += count
}

// Open subscribes to the program's logs. Notifications published before Open are not
// replayed.
func (n *Network) Open(ctx context.Context) (ledgerDomain.LogStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOpens > 0 {
		n.failOpens--
		return nil, errors.Wrap(ledgerDomain.ErrSubscriptionClosed, "connection refused")
	}

	s := &stream{network: n, ch: make(chan ledgerDomain.LogNotification, streamBuffer)}
	n.streams[s] = struct{}{}
	return s, nil
}

// Subscribers returns the number of open subscriptions.
func (n *Network) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.streams)
}

// Submissions returns the number of Submit calls, failed ones included.
func (n *Network) Submissions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submissions
}

// Aborted returns the number of computations that produced no output.
func (n *Network) Aborted() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.aborted
}

// OffsetUsed reports whether a computation offset has been consumed.
func (n *Network) OffsetUsed(offset uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.offsets[offset]
	return ok
}

// SealedCID returns the buyer capsule identifier written to a purchase record.
func (n *Network) SealedCID(record ledgerDomain.PublicKey) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cid, ok := n.sealed[record]
	return cid, ok
}

func newSignature() ledgerDomain.Signature {
	var sig ledgerDomain.Signature
	_, _ = rand.Read(sig[:])
	return sig
}

type stream struct {
	network *Network
	ch      chan ledgerDomain.LogNotification

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *stream) Notifications() <-chan ledgerDomain.LogNotification {
	return s.ch
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes. The caller's Close is not a failure, so Err stays nil.
func (s *stream) Close() error {
	s.network.mu.Lock()
	delete(s.network.streams, s)
	s.network.mu.Unlock()
	s.end(nil)
	return nil
}

// deliver reports false when the stream is gone. A consumer that lets the buffer fill is
// disconnected, as a node does with slow websocket clients.
func (s *stream) deliver(notification ledgerDomain.LogNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- notification:
		return true
	default:
		s.err = errors.Wrap(ledgerDomain.ErrSubscriptionClosed, "subscriber too slow")
		s.closed = true
		close(s.ch)
		return false
	}
}

func (s *stream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.ch)
}
