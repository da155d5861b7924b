package domain

// Algorithm identifies the AEAD used to seal a telemetry record.
//
// Both algorithms use a 256-bit key, a 12-byte nonce and a 16-byte tag, so envelopes
// produced by either share the same layout.
type Algorithm string

const (
	// AESGCM is AES-256-GCM. Preferred on hosts with AES-NI.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305. Preferred on constrained devices without AES hardware.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// Sizes shared by the record codec and the capsule format.
const (
	// KeySize is the size of a DEK and of every symmetric key derived in this package.
	KeySize = 32
	// NonceSize is the AEAD nonce size used for telemetry records.
	NonceSize = 12
	// TagSize is the AEAD authentication tag size.
	TagSize = 16
	// PublicKeySize is the size of an x25519 public or private key.
	PublicKeySize = 32
	// CapsuleNonceSize is the nonce size carried by sealed capsules and MPC outputs (a u128).
	CapsuleNonceSize = 16
	// LimbSize is the size of one ciphertext limb in the MPC wire format.
	LimbSize = 32
	// LimbCount is the number of ciphertext limbs a DEK is split into.
	LimbCount = 4
	// SenderShareSize is the slice of the sender public key carried at the head of each limb.
	SenderShareSize = PublicKeySize / LimbCount
	// CapsuleSize is the binary size of a SealedCapsule: the nonce followed by the limbs.
	CapsuleSize = CapsuleNonceSize + LimbCount*LimbSize
)

// ParseAlgorithm returns the Algorithm for s, defaulting to AESGCM when s is empty.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "":
		return AESGCM, nil
	case AESGCM, ChaCha20:
		return Algorithm(s), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
