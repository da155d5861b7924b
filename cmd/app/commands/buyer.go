package commands

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	buyerUseCase "github.com/chainsensors/capsules/internal/buyer/usecase"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	"github.com/chainsensors/capsules/internal/reseal/http/dto"
)

// RunBuyerKeygen creates the ephemeral x25519 key for a purchase and prints its public half,
// which is what the purchase submits as the reseal target.
func RunBuyerKeygen(
	ctx context.Context,
	unsealer buyerUseCase.Unsealer,
	logger *slog.Logger,
	writer io.Writer,
	listingStr, buyerStr, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	listing, buyer, err := parsePurchase(listingStr, buyerStr)
	if err != nil {
		return err
	}

	pub, err := unsealer.GenerateKey(ctx, listing, buyer)
	if err != nil {
		return fmt.Errorf("failed to generate buyer key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(pub[:])
	logger.Info("buyer key generated", slog.String("listing", listing.String()))

	if format == "json" {
		return writeJSON(writer, map[string]string{
			"listing":             listing.String(),
			"buyer":               buyer.String(),
			"buyer_x25519_base64": encoded,
		})
	}
	_, err = fmt.Fprintln(writer, encoded)
	return err
}

// RunBuyerKeys lists the ephemeral keys held for a listing.
func RunBuyerKeys(
	ctx context.Context,
	unsealer buyerUseCase.Unsealer,
	writer io.Writer,
	listingStr, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	listing, err := parseAddress("listing", listingStr)
	if err != nil {
		return err
	}

	keys, err := unsealer.Keys(ctx, listing)
	if err != nil {
		return fmt.Errorf("failed to list buyer keys: %w", err)
	}

	type keyOutput struct {
		Buyer     string `json:"buyer"`
		PublicKey string `json:"buyer_x25519_base64"`
	}
	out := make([]keyOutput, 0, len(keys))
	for _, key := range keys {
		out = append(out, keyOutput{
			Buyer:     key.Buyer.String(),
			PublicKey: base64.StdEncoding.EncodeToString(key.PublicKey[:]),
		})
	}

	if format == "json" {
		return writeJSON(writer, out)
	}
	for _, key := range out {
		if _, err := fmt.Fprintf(writer, "%s %s\n", key.Buyer, key.PublicKey); err != nil {
			return err
		}
	}
	return nil
}

// RunBuyerUnseal reads a delivered result (the JSON served by the reseal query endpoints)
// and prints the DEK it carries.
func RunBuyerUnseal(
	ctx context.Context,
	unsealer buyerUseCase.Unsealer,
	stdio IOTuple,
	listingStr, buyerStr string,
) error {
	listing, buyer, err := parsePurchase(listingStr, buyerStr)
	if err != nil {
		return err
	}
	out, err := readResealOutput(stdio.Reader)
	if err != nil {
		return err
	}

	dek, err := unsealer.Unseal(ctx, listing, buyer, out)
	if err != nil {
		return fmt.Errorf("failed to unseal: %w", err)
	}
	defer cryptoDomain.Zero32(&dek)

	_, err = fmt.Fprintln(stdio.Writer, base64.StdEncoding.EncodeToString(dek[:]))
	return err
}

// RunBuyerDecrypt unseals the result stored at resultPath and decrypts the envelopes read
// from the reader, one JSON envelope per line. Plaintexts are written one per line in order.
func RunBuyerDecrypt(
	ctx context.Context,
	unsealer buyerUseCase.Unsealer,
	stdio IOTuple,
	listingStr, buyerStr, deviceID, resultPath string,
) error {
	listing, buyer, err := parsePurchase(listingStr, buyerStr)
	if err != nil {
		return err
	}
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}

	result, err := os.Open(resultPath) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to open result: %w", err)
	}
	defer func() {
		_ = result.Close()
	}()
	out, err := readResealOutput(result)
	if err != nil {
		return err
	}

	envelopes, err := readEnvelopes(stdio.Reader)
	if err != nil {
		return err
	}

	dek, err := unsealer.Unseal(ctx, listing, buyer, out)
	if err != nil {
		return fmt.Errorf("failed to unseal: %w", err)
	}
	defer cryptoDomain.Zero32(&dek)

	plaintexts, err := unsealer.DecryptRecords(dek, deviceID, envelopes)
	if err != nil {
		return fmt.Errorf("failed to decrypt records: %w", err)
	}
	for _, plaintext := range plaintexts {
		if _, err := fmt.Fprintln(stdio.Writer, string(plaintext)); err != nil {
			return err
		}
	}
	return nil
}

// RunBuyerForget deletes the ephemeral key of a purchase.
func RunBuyerForget(
	ctx context.Context,
	unsealer buyerUseCase.Unsealer,
	logger *slog.Logger,
	listingStr, buyerStr string,
) error {
	listing, buyer, err := parsePurchase(listingStr, buyerStr)
	if err != nil {
		return err
	}
	if err := unsealer.Forget(ctx, listing, buyer); err != nil {
		return fmt.Errorf("failed to forget buyer key: %w", err)
	}
	logger.Info("buyer key deleted", slog.String("listing", listing.String()))
	return nil
}

func parsePurchase(listingStr, buyerStr string) (listing, buyer ledgerDomain.PublicKey, err error) {
	if listing, err = parseAddress("listing", listingStr); err != nil {
		return listing, buyer, err
	}
	buyer, err = parseAddress("buyer", buyerStr)
	return listing, buyer, err
}

// readResealOutput decodes a dto.ResealedCapsuleResponse back into the event it was built from.
func readResealOutput(r io.Reader) (*ledgerDomain.ResealOutput, error) {
	var resp dto.ResealedCapsuleResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	out := &ledgerDomain.ResealOutput{}
	var err error
	if out.Listing, err = parseAddress("listing", resp.Listing); err != nil {
		return nil, err
	}
	if out.Record, err = parseAddress("record", resp.Record); err != nil {
		return nil, err
	}
	if err := decodeFixed(out.EncryptionKey[:], resp.EncryptionKeyBase64, "encryptionKeyBase64"); err != nil {
		return nil, err
	}
	if err := decodeFixed(out.Nonce[:], resp.NonceBase64, "nonceBase64"); err != nil {
		return nil, err
	}
	if len(resp.LimbsBase64) != len(out.Limbs) {
		return nil, fmt.Errorf("result has %d limbs, want %d", len(resp.LimbsBase64), len(out.Limbs))
	}
	for i, limb := range resp.LimbsBase64 {
		if err := decodeFixed(out.Limbs[i][:], limb, fmt.Sprintf("limbsBase64[%d]", i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeFixed(dst []byte, encoded, field string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != len(dst) {
		return fmt.Errorf("invalid %s: want %d base64-encoded bytes", field, len(dst))
	}
	copy(dst, raw)
	return nil
}

func readEnvelopes(r io.Reader) ([]*cryptoDomain.Envelope, error) {
	var envelopes []*cryptoDomain.Envelope
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var env cryptoDomain.Envelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, fmt.Errorf("invalid envelope on line %d: %w", line, err)
		}
		envelopes = append(envelopes, &env)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read envelopes: %w", err)
	}
	return envelopes, nil
}
