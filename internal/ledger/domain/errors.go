package domain

import (
	"github.com/chainsensors/capsules/internal/errors"
)

// Ledger errors.
var (
	ErrInvalidAddress    = errors.Wrap(errors.ErrInvalidInput, "invalid ledger address")
	ErrInvalidSignature  = errors.Wrap(errors.ErrInvalidInput, "invalid transaction signature")
	ErrInvalidPrivateKey = errors.Wrap(errors.ErrInvalidInput, "invalid signing key")
	ErrSeedTooLong       = errors.Wrap(errors.ErrInvalidInput, "address seed exceeds 32 bytes")
	ErrNoViableBump      = errors.New("unable to find a viable program address bump")

	// ErrInvalidEventData indicates an event payload that does not match its schema.
	ErrInvalidEventData = errors.Wrap(errors.ErrInvalidInput, "invalid event data")
	// ErrUnknownEvent indicates a discriminator that matches no known event.
	ErrUnknownEvent = errors.New("unknown event discriminator")

	// ErrRPCUnavailable indicates the RPC endpoint could not be reached.
	ErrRPCUnavailable = errors.Wrap(errors.ErrUnavailable, "ledger rpc unavailable")
	// ErrRPCTimeout indicates the RPC call did not complete before its deadline; the
	// outcome of a submitted transaction is unknown.
	ErrRPCTimeout = errors.Wrap(errors.ErrTimeout, "ledger rpc timed out")
	// ErrTransactionRejected indicates the ledger refused the transaction.
	ErrTransactionRejected = errors.New("transaction rejected")
	// ErrAccountInUse indicates the transaction tried to create an account that already exists.
	ErrAccountInUse = errors.Wrap(errors.ErrConflict, "account already in use")
	// ErrSubscriptionClosed indicates the log subscription ended.
	ErrSubscriptionClosed = errors.Wrap(errors.ErrUnavailable, "log subscription closed")

	// ErrInvalidTransaction indicates a message that cannot be compiled or decoded.
	ErrInvalidTransaction = errors.Wrap(errors.ErrInvalidInput, "invalid transaction")
	// ErrMissingSigner indicates a required signature has no matching key.
	ErrMissingSigner = errors.Wrap(errors.ErrInvalidInput, "missing signer")
)
