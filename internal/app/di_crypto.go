package app

import (
	"context"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	"github.com/chainsensors/capsules/internal/errors"
)

// KeyWrapper returns the KMS-backed wrapper protecting DEKs and ephemeral keys at rest.
func (c *Container) KeyWrapper() (*cryptoService.KeyWrapper, error) {
	var err error
	c.keyWrapperInit.Do(func() {
		c.keyWrapper, err = c.initKeyWrapper()
		if err != nil {
			c.initErrors["keyWrapper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyWrapper"]; exists {
		return nil, storedErr
	}
	return c.keyWrapper, nil
}

// CapsuleSealer returns the x25519 capsule sealer.
func (c *Container) CapsuleSealer() *cryptoService.X25519Sealer {
	c.sealerInit.Do(func() {
		c.sealer = cryptoService.NewCapsuleSealer()
	})
	return c.sealer
}

// RecordCodec returns the AEAD record codec. Records are written with AES-GCM; both
// algorithms are accepted on decryption.
func (c *Container) RecordCodec() *cryptoService.RecordCodec {
	c.codecInit.Do(func() {
		c.codec = cryptoService.NewRecordCodec(cryptoDomain.AESGCM)
	})
	return c.codec
}

// MXEPublicKey decodes the network key capsules are sealed to. It returns nil when unset.
func (c *Container) MXEPublicKey() (*[cryptoDomain.PublicKeySize]byte, error) {
	if c.config.MXEPublicKeyBase64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(c.config.MXEPublicKeyBase64)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "MXE_X25519_PUBKEY_BASE64 is not valid base64")
	}
	key, err := cryptoService.ValidatePublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid MXE public key: %w", err)
	}
	return &key, nil
}

func (c *Container) initKeyWrapper() (*cryptoService.KeyWrapper, error) {
	if c.config.KMSKeyURI == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "KMS_KEY_URI is required")
	}
	keeper, err := cryptoService.NewKMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open kms keeper: %w", err)
	}
	return cryptoService.NewKeyWrapper(keeper), nil
}
