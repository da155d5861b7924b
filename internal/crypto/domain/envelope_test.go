package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvelope_Validate(t *testing.T) {
	valid := func() *Envelope {
		return &Envelope{
			Nonce:      make([]byte, NonceSize),
			AAD:        []byte("device-1"),
			Ciphertext: []byte{1, 2, 3},
			Tag:        make([]byte, TagSize),
			Algorithm:  AESGCM,
			DeviceID:   "device-1",
			Timestamp:  time.Now().UTC(),
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(e *Envelope)
		err    error
	}{
		{"short nonce", func(e *Envelope) { e.Nonce = e.Nonce[:11] }, ErrInvalidEnvelope},
		{"short tag", func(e *Envelope) { e.Tag = e.Tag[:15] }, ErrInvalidEnvelope},
		{"empty ciphertext", func(e *Envelope) { e.Ciphertext = nil }, ErrInvalidEnvelope},
		{"missing device", func(e *Envelope) { e.DeviceID = "" }, ErrInvalidEnvelope},
		{"unknown algorithm", func(e *Envelope) { e.Algorithm = "rot13" }, ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			assert.ErrorIs(t, e.Validate(), tt.err)
		})
	}

	t.Run("empty algorithm defaults to aes-gcm", func(t *testing.T) {
		e := valid()
		e.Algorithm = ""
		assert.NoError(t, e.Validate())
		assert.Equal(t, AESGCM, e.Algorithm)
	})

	var nilEnvelope *Envelope
	assert.ErrorIs(t, nilEnvelope.Validate(), ErrInvalidEnvelope)
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	assert.NoError(t, err)
	assert.Equal(t, AESGCM, alg)

	alg, err = ParseAlgorithm("chacha20-poly1305")
	assert.NoError(t, err)
	assert.Equal(t, ChaCha20, alg)

	_, err = ParseAlgorithm("des")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestKeyHelpers(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
	Zero(nil)

	_, err := Key32(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	src := make([]byte, KeySize)
	src[0] = 9
	k, err := Key32(src)
	assert.NoError(t, err)
	assert.Equal(t, byte(9), k[0])

	Zero32(&k)
	assert.Equal(t, [KeySize]byte{}, k)
	Zero32(nil)
}
