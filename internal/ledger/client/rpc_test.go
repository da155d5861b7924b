package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

const testBlockhash = "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw"

// rpcError is the error object a JSON-RPC node replies with.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcHandler func(method string, params []json.RawMessage) (any, *rpcError)

func newRPCServer(t *testing.T, handle rpcHandler) *RPCClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	client, err := NewRPCClient(RPCConfig{
		URL:          server.URL,
		Timeout:      2 * time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func blockhashResult() any {
	return map[string]any{
		"context": map[string]any{"slot": 10},
		"value":   map[string]any{"blockhash": testBlockhash, "lastValidBlockHeight": 100},
	}
}

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func testInstruction() ledgerDomain.Instruction {
	var program ledgerDomain.PublicKey
	program[0] = 9
	return ledgerDomain.Instruction{ProgramID: program, Data: []byte{1}}
}

func TestNewRPCClient_RequiresURL(t *testing.T) {
	_, err := NewRPCClient(RPCConfig{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRPCClient_GetLatestBlockhash(t *testing.T) {
	client := newRPCServer(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		assert.Equal(t, "getLatestBlockhash", method)
		require.Len(t, params, 1)
		assert.JSONEq(t, `{"commitment":"confirmed"}`, string(params[0]))
		return blockhashResult(), nil
	})

	hash, err := client.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBlockhash, hash.String())
}

func TestSubmitter_Submit(t *testing.T) {
	payer := newKey(t)
	var sent atomic.Int32

	client := newRPCServer(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		switch method {
		case "getLatestBlockhash":
			return blockhashResult(), nil
		case "sendTransaction":
			sent.Add(1)
			require.Len(t, params, 2)
			assert.JSONEq(t, `{"encoding":"base64","skipPreflight":false,"preflightCommitment":"confirmed"}`, string(params[1]))

			var encoded string
			require.NoError(t, json.Unmarshal(params[0], &encoded))
			raw, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)
			tx, err := solana.TransactionFromBytes(raw)
			require.NoError(t, err)
			assert.NoError(t, tx.VerifySignatures())
			assert.Equal(t, testBlockhash, tx.Message.RecentBlockhash.String())
			return tx.Signatures[0].String(), nil
		}
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	})

	submitter := NewSubmitter(client, payer, discardLogger())
	assert.Equal(t, ledgerDomain.PublicKeyOf(payer), submitter.Signer())

	sig, err := submitter.Submit(context.Background(), testInstruction())
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	assert.Equal(t, int32(1), sent.Load())
}

func TestSubmitter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rpcErr  *rpcError
		wantErr error
	}{
		{
			name: "account in use",
			rpcErr: &rpcError{
				Code:    -32002,
				Message: "Transaction simulation failed: Error processing Instruction 0",
				Data:    map[string]any{"logs": []string{"Allocate: account Address { address: x } already in use"}},
			},
			wantErr: ledgerDomain.ErrAccountInUse,
		},
		{
			name:    "other rejection",
			rpcErr:  &rpcError{Code: -32002, Message: "Blockhash not found"},
			wantErr: ledgerDomain.ErrTransactionRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newRPCServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
				if method == "getLatestBlockhash" {
					return blockhashResult(), nil
				}
				return nil, tt.rpcErr
			})

			_, err := NewSubmitter(client, newKey(t), discardLogger()).Submit(context.Background(), testInstruction())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("account in use is a conflict", func(t *testing.T) {
		assert.True(t, errors.Is(ledgerDomain.ErrAccountInUse, errors.ErrConflict))
	})
}

func TestRPCClient_Unavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := NewRPCClient(RPCConfig{
		URL:          server.URL,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.GetLatestBlockhash(context.Background())
	assert.ErrorIs(t, err, ledgerDomain.ErrRPCUnavailable)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRPCClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client, err := NewRPCClient(RPCConfig{URL: server.URL, RetryMax: 1, RetryWaitMin: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.GetLatestBlockhash(ctx)
	assert.ErrorIs(t, err, ledgerDomain.ErrRPCTimeout)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}
