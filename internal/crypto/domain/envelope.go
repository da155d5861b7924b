package domain

import "time"

// Envelope is a self-describing encrypted telemetry record.
//
// Each envelope carries its own random nonce, so envelopes can be stored, replayed or
// reordered independently of one another. The associated data is the device identifier;
// a decryptor rejects any envelope whose AAD does not match DeviceID.
type Envelope struct {
	Nonce         []byte    `json:"nonce"`
	AAD           []byte    `json:"aad"`
	Ciphertext    []byte    `json:"ciphertext"`
	Tag           []byte    `json:"tag"`
	Algorithm     Algorithm `json:"alg"`
	DeviceID      string    `json:"device_id"`
	Timestamp     time.Time `json:"ts"`
	KeyGeneration uint32    `json:"kgen"`
}

// Validate checks the structural invariants of the envelope without touching any key.
// An empty algorithm is normalised to AESGCM.
func (e *Envelope) Validate() error {
	if e == nil {
		return ErrInvalidEnvelope
	}
	if len(e.Nonce) != NonceSize || len(e.Tag) != TagSize || len(e.Ciphertext) == 0 {
		return ErrInvalidEnvelope
	}
	if e.DeviceID == "" {
		return ErrInvalidEnvelope
	}
	alg, err := ParseAlgorithm(string(e.Algorithm))
	if err != nil {
		return err
	}
	e.Algorithm = alg
	return nil
}
