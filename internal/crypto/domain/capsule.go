package domain

// SealedCapsule is a DEK sealed to an x25519 recipient in the MPC network's wire format.
//
// The same layout is used for capsules sealed to the MPC network (stored in the blob
// store) and for resealed outputs addressed to a buyer. Nonce is a 128-bit value. Each
// limb is share(8) || ciphertext(8) || tag(16): one 64-bit DEK word sealed on its own,
// prefixed with an 8-byte slice of the sealer's ephemeral public key. The four shares
// concatenated in limb order give SenderPublicKey.
//
// Binary layout (144 bytes): nonce(16) || c0(32) || c1(32) || c2(32) || c3(32).
type SealedCapsule struct {
	Nonce [CapsuleNonceSize]byte
	Limbs [LimbCount][LimbSize]byte
}

// SenderPublicKey reassembles the sealer's ephemeral public key from the limb shares.
func (c *SealedCapsule) SenderPublicKey() [PublicKeySize]byte {
	var pk [PublicKeySize]byte
	for i := range c.Limbs {
		copy(pk[i*SenderShareSize:], c.Limbs[i][:SenderShareSize])
	}
	return pk
}

// SetSenderPublicKey writes pk into the share prefix of every limb.
func (c *SealedCapsule) SetSenderPublicKey(pk [PublicKeySize]byte) {
	for i := range c.Limbs {
		copy(c.Limbs[i][:SenderShareSize], pk[i*SenderShareSize:(i+1)*SenderShareSize])
	}
}

// MarshalBinary encodes the capsule in its fixed binary layout.
func (c *SealedCapsule) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, CapsuleSize)
	out = append(out, c.Nonce[:]...)
	for i := range c.Limbs {
		out = append(out, c.Limbs[i][:]...)
	}
	return out, nil
}

// UnmarshalBinary decodes a capsule, rejecting any input that is not exactly CapsuleSize bytes.
func (c *SealedCapsule) UnmarshalBinary(data []byte) error {
	if len(data) != CapsuleSize {
		return ErrInvalidCapsule
	}
	offset := copy(c.Nonce[:], data)
	for i := range c.Limbs {
		offset += copy(c.Limbs[i][:], data[offset:])
	}
	return nil
}

// ParseSealedCapsule decodes a capsule from its binary layout.
func ParseSealedCapsule(data []byte) (*SealedCapsule, error) {
	var c SealedCapsule
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewSealedCapsule assembles a capsule from loosely typed parts, validating every size.
// Limbs of the wrong length yield ErrInvalidCapsule.
func NewSealedCapsule(nonce []byte, limbs [][]byte) (*SealedCapsule, error) {
	if len(nonce) != CapsuleNonceSize || len(limbs) != LimbCount {
		return nil, ErrInvalidCapsule
	}
	var c SealedCapsule
	copy(c.Nonce[:], nonce)
	for i, limb := range limbs {
		if len(limb) != LimbSize {
			return nil, ErrInvalidCapsule
		}
		copy(c.Limbs[i][:], limb)
	}
	return &c, nil
}
