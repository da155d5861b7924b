package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	buyerDomain "github.com/chainsensors/capsules/internal/buyer/domain"
	buyerMocks "github.com/chainsensors/capsules/internal/buyer/usecase/mocks"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	"github.com/chainsensors/capsules/internal/reseal/http/dto"
)

var (
	testListing = ledgerDomain.PublicKey{1, 2, 3}
	testBuyer   = ledgerDomain.PublicKey{4, 5, 6}
	testRecord  = ledgerDomain.PublicKey{7, 8, 9}
)

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func resultJSON(t *testing.T) []byte {
	t.Helper()
	resp := dto.ResealedCapsuleResponse{
		ID:                  "0192e0a4-0000-7000-8000-000000000001",
		Listing:             testListing.String(),
		Record:              testRecord.String(),
		Signature:           "sig",
		Slot:                42,
		EncryptionKeyBase64: base64.StdEncoding.EncodeToString(fill(32, 0xaa)),
		NonceBase64:         base64.StdEncoding.EncodeToString(fill(16, 0xbb)),
		LimbsBase64: []string{
			base64.StdEncoding.EncodeToString(fill(32, 1)),
			base64.StdEncoding.EncodeToString(fill(32, 2)),
			base64.StdEncoding.EncodeToString(fill(32, 3)),
			base64.StdEncoding.EncodeToString(fill(32, 4)),
		},
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	return raw
}

func matchesResult(out *ledgerDomain.ResealOutput) bool {
	return out.Listing == testListing &&
		out.Record == testRecord &&
		out.EncryptionKey[0] == 0xaa &&
		out.Nonce[15] == 0xbb &&
		out.Limbs[3][31] == 4
}

func TestRunBuyerKeygen(t *testing.T) {
	ctx := context.Background()
	var pub [cryptoDomain.PublicKeySize]byte
	copy(pub[:], fill(32, 9))
	encoded := base64.StdEncoding.EncodeToString(pub[:])

	t.Run("text", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("GenerateKey", ctx, testListing, testBuyer).Return(pub, nil)

		var out bytes.Buffer
		err := RunBuyerKeygen(ctx, unsealer, testLogger(), &out, testListing.String(), testBuyer.String(), "text")
		require.NoError(t, err)
		require.Equal(t, encoded+"\n", out.String())
		unsealer.AssertExpectations(t)
	})

	t.Run("json", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("GenerateKey", ctx, testListing, testBuyer).Return(pub, nil)

		var out bytes.Buffer
		err := RunBuyerKeygen(ctx, unsealer, testLogger(), &out, testListing.String(), testBuyer.String(), "json")
		require.NoError(t, err)

		var decoded map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Equal(t, encoded, decoded["buyer_x25519_base64"])
		require.Equal(t, testListing.String(), decoded["listing"])
	})

	t.Run("invalid listing", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		err := RunBuyerKeygen(ctx, unsealer, testLogger(), &bytes.Buffer{}, "not-base58!", testBuyer.String(), "text")
		require.ErrorContains(t, err, "invalid listing address")
		unsealer.AssertNotCalled(t, "GenerateKey", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("key already exists", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("GenerateKey", ctx, testListing, testBuyer).
			Return([cryptoDomain.PublicKeySize]byte{}, buyerDomain.ErrKeyAlreadyExists)

		err := RunBuyerKeygen(ctx, unsealer, testLogger(), &bytes.Buffer{}, testListing.String(), testBuyer.String(), "text")
		require.ErrorIs(t, err, buyerDomain.ErrKeyAlreadyExists)
	})
}

func TestRunBuyerKeys(t *testing.T) {
	ctx := context.Background()
	keys := []*buyerDomain.EphemeralKey{
		{Listing: testListing, Buyer: testBuyer, PublicKey: [32]byte{1}},
	}

	unsealer := &buyerMocks.MockUnsealer{}
	unsealer.On("Keys", ctx, testListing).Return(keys, nil)

	var out bytes.Buffer
	require.NoError(t, RunBuyerKeys(ctx, unsealer, &out, testListing.String(), "text"))
	require.True(t, strings.HasPrefix(out.String(), testBuyer.String()+" "))

	out.Reset()
	require.NoError(t, RunBuyerKeys(ctx, unsealer, &out, testListing.String(), "json"))
	require.NotContains(t, out.String(), "wrapped")
	require.Contains(t, out.String(), testBuyer.String())
}

func TestRunBuyerUnseal(t *testing.T) {
	ctx := context.Background()
	var dek [cryptoDomain.KeySize]byte
	copy(dek[:], fill(32, 0x42))

	t.Run("success", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("Unseal", ctx, testListing, testBuyer, mock.MatchedBy(matchesResult)).Return(dek, nil)

		var out bytes.Buffer
		stdio := IOTuple{Reader: bytes.NewReader(resultJSON(t)), Writer: &out}
		require.NoError(t, RunBuyerUnseal(ctx, unsealer, stdio, testListing.String(), testBuyer.String()))
		require.Equal(t, base64.StdEncoding.EncodeToString(fill(32, 0x42))+"\n", out.String())
		unsealer.AssertExpectations(t)
	})

	t.Run("wrong limb count", func(t *testing.T) {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(resultJSON(t), &resp))
		resp["limbsBase64"] = []string{base64.StdEncoding.EncodeToString(fill(32, 1))}
		raw, err := json.Marshal(resp)
		require.NoError(t, err)

		unsealer := &buyerMocks.MockUnsealer{}
		stdio := IOTuple{Reader: bytes.NewReader(raw), Writer: &bytes.Buffer{}}
		err = RunBuyerUnseal(ctx, unsealer, stdio, testListing.String(), testBuyer.String())
		require.ErrorContains(t, err, "result has 1 limbs, want 4")
	})

	t.Run("short nonce", func(t *testing.T) {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(resultJSON(t), &resp))
		resp["nonceBase64"] = base64.StdEncoding.EncodeToString(fill(8, 1))
		raw, err := json.Marshal(resp)
		require.NoError(t, err)

		unsealer := &buyerMocks.MockUnsealer{}
		stdio := IOTuple{Reader: bytes.NewReader(raw), Writer: &bytes.Buffer{}}
		err = RunBuyerUnseal(ctx, unsealer, stdio, testListing.String(), testBuyer.String())
		require.ErrorContains(t, err, "invalid nonceBase64")
	})

	t.Run("listing mismatch", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("Unseal", ctx, testListing, testBuyer, mock.Anything).
			Return([cryptoDomain.KeySize]byte{}, buyerDomain.ErrListingMismatch)

		stdio := IOTuple{Reader: bytes.NewReader(resultJSON(t)), Writer: &bytes.Buffer{}}
		err := RunBuyerUnseal(ctx, unsealer, stdio, testListing.String(), testBuyer.String())
		require.ErrorIs(t, err, buyerDomain.ErrListingMismatch)
	})
}

func TestRunBuyerDecrypt(t *testing.T) {
	ctx := context.Background()
	var dek [cryptoDomain.KeySize]byte
	copy(dek[:], fill(32, 0x42))

	resultPath := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(resultPath, resultJSON(t), 0o600))

	env := cryptoDomain.Envelope{
		Nonce:         fill(12, 1),
		AAD:           []byte("sensor-7"),
		Ciphertext:    []byte("cipher"),
		Tag:           fill(16, 2),
		Algorithm:     cryptoDomain.AESGCM,
		DeviceID:      "sensor-7",
		KeyGeneration: 1,
	}
	line, err := json.Marshal(env)
	require.NoError(t, err)
	input := string(line) + "\n\n" + string(line) + "\n"

	t.Run("success", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("Unseal", ctx, testListing, testBuyer, mock.MatchedBy(matchesResult)).Return(dek, nil)
		unsealer.On("DecryptRecords", dek, "sensor-7", mock.MatchedBy(func(envs []*cryptoDomain.Envelope) bool {
			return len(envs) == 2
		})).Return([][]byte{[]byte(`{"temp":1}`), []byte(`{"temp":2}`)}, nil)

		var out bytes.Buffer
		stdio := IOTuple{Reader: strings.NewReader(input), Writer: &out}
		err := RunBuyerDecrypt(ctx, unsealer, stdio, testListing.String(), testBuyer.String(), "sensor-7", resultPath)
		require.NoError(t, err)
		require.Equal(t, "{\"temp\":1}\n{\"temp\":2}\n", out.String())
		unsealer.AssertExpectations(t)
	})

	t.Run("missing device id", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		stdio := IOTuple{Reader: strings.NewReader(input), Writer: &bytes.Buffer{}}
		err := RunBuyerDecrypt(ctx, unsealer, stdio, testListing.String(), testBuyer.String(), "", resultPath)
		require.ErrorContains(t, err, "device id is required")
	})

	t.Run("malformed envelope", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		stdio := IOTuple{Reader: strings.NewReader(string(line) + "\n{oops\n"), Writer: &bytes.Buffer{}}
		err := RunBuyerDecrypt(ctx, unsealer, stdio, testListing.String(), testBuyer.String(), "sensor-7", resultPath)
		require.ErrorContains(t, err, "invalid envelope on line 2")
		unsealer.AssertNotCalled(t, "Unseal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing result file", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		stdio := IOTuple{Reader: strings.NewReader(input), Writer: &bytes.Buffer{}}
		err := RunBuyerDecrypt(ctx, unsealer, stdio, testListing.String(), testBuyer.String(), "sensor-7",
			filepath.Join(t.TempDir(), "absent.json"))
		require.ErrorContains(t, err, "failed to open result")
	})

	t.Run("authentication failure", func(t *testing.T) {
		unsealer := &buyerMocks.MockUnsealer{}
		unsealer.On("Unseal", ctx, testListing, testBuyer, mock.Anything).Return(dek, nil)
		unsealer.On("DecryptRecords", dek, "sensor-7", mock.Anything).Return(nil, cryptoDomain.ErrDecryptionFailed)

		var out bytes.Buffer
		stdio := IOTuple{Reader: strings.NewReader(input), Writer: &out}
		err := RunBuyerDecrypt(ctx, unsealer, stdio, testListing.String(), testBuyer.String(), "sensor-7", resultPath)
		require.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		require.Empty(t, out.String())
	})
}

func TestRunBuyerForget(t *testing.T) {
	ctx := context.Background()
	unsealer := &buyerMocks.MockUnsealer{}
	unsealer.On("Forget", ctx, testListing, testBuyer).Return(nil)

	require.NoError(t, RunBuyerForget(ctx, unsealer, testLogger(), testListing.String(), testBuyer.String()))
	unsealer.AssertExpectations(t)
}
