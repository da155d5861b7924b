package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	buyerDomain "github.com/chainsensors/capsules/internal/buyer/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

type unsealer struct {
	keys    KeyRepository
	wrapper KeyWrapper
	sealer  cryptoService.CapsuleSealer
	codec   *cryptoService.RecordCodec
	logger  *slog.Logger
}

// NewUnsealer creates an Unsealer.
func NewUnsealer(
	keys KeyRepository,
	wrapper KeyWrapper,
	sealer cryptoService.CapsuleSealer,
	codec *cryptoService.RecordCodec,
	logger *slog.Logger,
) Unsealer {
	return &unsealer{
		keys:    keys,
		wrapper: wrapper,
		sealer:  sealer,
		codec:   codec,
		logger:  logger,
	}
}

func (u *unsealer) GenerateKey(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) ([cryptoDomain.PublicKeySize]byte, error) {
	var pub [cryptoDomain.PublicKeySize]byte

	if _, err := u.keys.Get(ctx, listing, buyer); err == nil {
		return pub, buyerDomain.ErrKeyAlreadyExists
	}

	priv, pub, err := cryptoService.GenerateX25519KeyPair()
	if err != nil {
		return pub, err
	}
	defer cryptoDomain.Zero32(&priv)

	wrapped, err := u.wrapper.Wrap(ctx, priv)
	if err != nil {
		return pub, err
	}

	key := &buyerDomain.EphemeralKey{
		Listing:           listing,
		Buyer:             buyer,
		PublicKey:         pub,
		WrappedPrivateKey: wrapped,
		CreatedAt:         time.Now().UTC(),
	}
	if err := u.keys.Create(ctx, key); err != nil {
		return [cryptoDomain.PublicKeySize]byte{}, err
	}

	u.logger.Info("ephemeral key generated",
		slog.String("listing", listing.String()),
		slog.String("buyer", buyer.String()),
	)
	return pub, nil
}

func (u *unsealer) PublicKey(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) ([cryptoDomain.PublicKeySize]byte, error) {
	key, err := u.keys.Get(ctx, listing, buyer)
	if err != nil {
		return [cryptoDomain.PublicKeySize]byte{}, err
	}
	return key.PublicKey, nil
}

func (u *unsealer) Unseal(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
	out *ledgerDomain.ResealOutput,
) ([cryptoDomain.KeySize]byte, error) {
	var dek [cryptoDomain.KeySize]byte
	if out == nil {
		return dek, cryptoDomain.ErrInvalidCapsule
	}
	if out.Listing != listing {
		return dek, buyerDomain.ErrListingMismatch
	}

	key, err := u.keys.Get(ctx, listing, buyer)
	if err != nil {
		return dek, err
	}

	priv, err := u.wrapper.Unwrap(ctx, key.WrappedPrivateKey)
	if err != nil {
		return dek, err
	}
	defer cryptoDomain.Zero32(&priv)

	capsule := &cryptoDomain.SealedCapsule{Nonce: out.Nonce, Limbs: out.Limbs}
	if capsule.SenderPublicKey() != out.EncryptionKey {
		err = cryptoDomain.ErrUnsealFailed
	} else {
		dek, err = u.sealer.Open(priv, capsule)
	}
	if err != nil {
		u.logger.Warn("failed to unseal resealed capsule",
			slog.String("listing", listing.String()),
			slog.String("record", out.Record.String()),
			slog.Any("error", err),
		)
		return dek, err
	}
	return dek, nil
}

func (u *unsealer) DecryptRecords(
	dek [cryptoDomain.KeySize]byte,
	deviceID string,
	envelopes []*cryptoDomain.Envelope,
) ([][]byte, error) {
	records := make([][]byte, 0, len(envelopes))
	for i, env := range envelopes {
		plain, err := u.codec.DecryptBytes(dek[:], deviceID, env)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, plain)
	}
	return records, nil
}

func (u *unsealer) Keys(ctx context.Context, listing ledgerDomain.PublicKey) ([]*buyerDomain.EphemeralKey, error) {
	return u.keys.ListByListing(ctx, listing)
}

func (u *unsealer) Forget(ctx context.Context, listing, buyer ledgerDomain.PublicKey) error {
	if err := u.keys.Delete(ctx, listing, buyer); err != nil {
		return err
	}
	u.logger.Info("ephemeral key deleted",
		slog.String("listing", listing.String()),
		slog.String("buyer", buyer.String()),
	)
	return nil
}
