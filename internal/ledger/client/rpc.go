// Package client talks to the ledger: JSON-RPC submission of signed transactions and a
// websocket log subscription for program events.
package client

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
)

// CommitmentConfirmed is the commitment level used for reads, preflight and subscriptions.
const CommitmentConfirmed = rpc.CommitmentConfirmed

// RPCConfig configures the JSON-RPC client.
type RPCConfig struct {
	URL          string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
}

// RPCClient is the ledger JSON-RPC client. Requests travel over retryablehttp, so
// connection errors and 5xx/429 responses are retried before they surface.
type RPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates an RPC client.
func NewRPCClient(cfg RPCConfig) (*RPCClient, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ledger rpc url is required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	if cfg.Logger != nil {
		retryClient.Logger = cfg.Logger
	}
	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.RetryMax > 0 {
		retryClient.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}

	transport := jsonrpc.NewClientWithOpts(cfg.URL, &jsonrpc.RPCClientOpts{
		HTTPClient: retryClient.StandardClient(),
	})
	return &RPCClient{client: rpc.NewWithCustomRPCClient(transport)}, nil
}

// Close releases idle connections.
func (c *RPCClient) Close() error {
	return c.client.Close()
}

// GetLatestBlockhash returns a recent block hash at confirmed commitment.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (ledgerDomain.Hash, error) {
	out, err := c.client.GetLatestBlockhash(ctx, CommitmentConfirmed)
	if err != nil {
		return ledgerDomain.Hash{}, mapRPCError(ctx, "getLatestBlockhash", err)
	}
	if out == nil || out.Value == nil || out.Value.Blockhash.IsZero() {
		return ledgerDomain.Hash{}, errors.Wrap(ledgerDomain.ErrRPCUnavailable, "invalid blockhash")
	}
	return ledgerDomain.Hash(out.Value.Blockhash), nil
}

// SendTransaction submits a signed transaction and returns its signature once the node
// has accepted it after preflight.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (ledgerDomain.Signature, error) {
	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: CommitmentConfirmed,
	})
	if err != nil {
		return ledgerDomain.Signature{}, mapRPCError(ctx, "sendTransaction", err)
	}
	return ledgerDomain.Signature(sig), nil
}

// mapRPCError translates transport failures and node-side rejections into ledger errors.
// A transaction that tries to initialise an existing account (for example a reused
// computation offset) maps to ErrAccountInUse.
func mapRPCError(ctx context.Context, method string, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(ledgerDomain.ErrRPCTimeout, method)
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return errors.Wrap(ledgerDomain.ErrRPCUnavailable, err.Error())
	}

	detail := strings.ToLower(fmt.Sprintf("%s %v", rpcErr.Message, rpcErr.Data))
	if strings.Contains(detail, "already in use") || strings.Contains(detail, "accountalreadyinuse") {
		return errors.Wrap(ledgerDomain.ErrAccountInUse, rpcErr.Message)
	}
	return errors.Wrap(ledgerDomain.ErrTransactionRejected, rpcErr.Message)
}

// Submitter signs instructions with the payer key and submits them.
type Submitter struct {
	rpc    *RPCClient
	signer ed25519.PrivateKey
	logger *slog.Logger
}

// NewSubmitter creates a Submitter that signs with signer.
func NewSubmitter(rpc *RPCClient, signer ed25519.PrivateKey, logger *slog.Logger) *Submitter {
	return &Submitter{rpc: rpc, signer: signer, logger: logger}
}

// Signer returns the address that pays for and signs submissions.
func (s *Submitter) Signer() ledgerDomain.PublicKey {
	return ledgerDomain.PublicKeyOf(s.signer)
}

// Submit compiles the instructions against a fresh block hash, signs and sends them.
func (s *Submitter) Submit(
	ctx context.Context,
	instructions ...ledgerDomain.Instruction,
) (ledgerDomain.Signature, error) {
	blockhash, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return ledgerDomain.Signature{}, err
	}

	tx, err := ledgerService.BuildTransaction(s.Signer(), blockhash, instructions...)
	if err != nil {
		return ledgerDomain.Signature{}, err
	}
	if err := ledgerService.SignTransaction(tx, s.signer); err != nil {
		return ledgerDomain.Signature{}, err
	}

	sig, err := s.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return ledgerDomain.Signature{}, err
	}
	if expected := ledgerService.TransactionSignature(tx); sig != expected {
		s.logger.Warn("node returned unexpected signature",
			slog.String("expected", expected.String()),
			slog.String("signature", sig.String()),
		)
	}
	return sig, nil
}
