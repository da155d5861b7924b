package usecase

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func filledKey(b byte) ledgerDomain.PublicKey {
	var pk ledgerDomain.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func testProgramID() ledgerDomain.PublicKey {
	var pk ledgerDomain.PublicKey
	for i := range pk {
		pk[i] = byte(i + 1)
	}
	return pk
}

var (
	testListing = filledKey(0x11)
	testRecord  = filledKey(0x22)
	testBuyer   = filledKey(0x33)
	testPayer   = filledKey(0x44)
	testNetwork = ledgerDomain.MustParsePublicKey("ARCiuMQqgJgURmsRyf95qUWfUmUaY8PzLnCVCVFhTr4j")
)

// randomStream returns the bytes the use case reads for one offset draw per value, each
// little-endian.
func randomStream(offsets ...uint64) io.Reader {
	var buf bytes.Buffer
	for _, offset := range offsets {
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], offset)
		buf.Write(raw[:])
	}
	return &buf
}

func testSubmitInput(t *testing.T) *SubmitInput {
	t.Helper()

	_, buyerKey, err := cryptoService.GenerateX25519KeyPair()
	require.NoError(t, err)

	limbs := make([][]byte, cryptoDomain.LimbCount)
	for i := range limbs {
		limbs[i] = bytes.Repeat([]byte{byte(0xa0 + i)}, cryptoDomain.LimbSize)
	}
	return &SubmitInput{
		ListingID:    testListing,
		RecordID:     testRecord,
		Buyer:        testBuyer,
		Payer:        testPayer,
		BuyerX25519:  buyerKey[:],
		CapsuleNonce: bytes.Repeat([]byte{0x66}, cryptoDomain.CapsuleNonceSize),
		Limbs:        limbs,
	}
}

func testOutput() *ledgerDomain.ResealOutput {
	out := &ledgerDomain.ResealOutput{Listing: testListing, Record: testRecord}
	out.EncryptionKey[0] = 0x77
	out.Nonce[0] = 0x88
	out.Limbs[0][0] = 0x99
	return out
}

func testResult() *resealDomain.ResealedCapsule {
	return resealDomain.NewResealedCapsule(testOutput(), "sig-1", 10)
}
