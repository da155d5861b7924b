package domain

// Zero securely overwrites a byte slice with zeros to clear key material from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Zero32 clears a fixed-size key.
func Zero32(k *[KeySize]byte) {
	if k == nil {
		return
	}
	Zero(k[:])
}

// Key32 copies b into a fixed-size key, failing with ErrInvalidKeySize if b is not 32 bytes.
func Key32(b []byte) ([KeySize]byte, error) {
	var k [KeySize]byte
	if len(b) != KeySize {
		return k, ErrInvalidKeySize
	}
	copy(k[:], b)
	return k, nil
}
