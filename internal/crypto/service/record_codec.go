package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// RecordCodec encrypts individual telemetry records with a device DEK.
//
// The device identifier is bound as associated data, so an envelope moved to another
// device's stream fails authentication instead of decrypting under the wrong identity.
type RecordCodec struct {
	algorithm cryptoDomain.Algorithm
	now       func() time.Time
}

// NewRecordCodec creates a codec sealing new records with alg. Decryption accepts any
// supported algorithm named by the envelope.
func NewRecordCodec(alg cryptoDomain.Algorithm) *RecordCodec {
	if alg == "" {
		alg = cryptoDomain.AESGCM
	}
	return &RecordCodec{
		algorithm: alg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Encrypt serializes record as JSON and seals it under dek with deviceID as associated data.
func (c *RecordCodec) Encrypt(dek []byte, deviceID string, record any) (*cryptoDomain.Envelope, error) {
	if deviceID == "" {
		return nil, cryptoDomain.ErrInvalidEnvelope
	}

	plaintext, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record: %w", err)
	}
	defer cryptoDomain.Zero(plaintext)

	return c.EncryptBytes(dek, deviceID, plaintext)
}

// EncryptBytes seals an already serialized record.
func (c *RecordCodec) EncryptBytes(dek []byte, deviceID string, plaintext []byte) (*cryptoDomain.Envelope, error) {
	cipher, err := NewCipher(dek, c.algorithm)
	if err != nil {
		return nil, err
	}

	aad := []byte(deviceID)
	sealed, nonce, err := cipher.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}

	split := len(sealed) - cryptoDomain.TagSize
	return &cryptoDomain.Envelope{
		Nonce:      nonce,
		AAD:        aad,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
		Algorithm:  c.algorithm,
		DeviceID:   deviceID,
		Timestamp:  c.now(),
	}, nil
}

// Decrypt authenticates env against dek and the expected deviceID and unmarshals the
// plaintext into out. Any mismatch fails closed with ErrDecryptionFailed.
func (c *RecordCodec) Decrypt(dek []byte, deviceID string, env *cryptoDomain.Envelope, out any) error {
	plaintext, err := c.DecryptBytes(dek, deviceID, env)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(plaintext)

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("failed to deserialize record: %w", err)
	}
	return nil
}

// DecryptBytes returns the raw serialized record.
func (c *RecordCodec) DecryptBytes(dek []byte, deviceID string, env *cryptoDomain.Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.DeviceID != deviceID || !bytes.Equal(env.AAD, []byte(deviceID)) {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	cipher, err := NewCipher(dek, env.Algorithm)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	return cipher.Decrypt(sealed, env.Nonce, env.AAD)
}
