package domain

// Event names as declared by the marketplace program.
const (
	EventResealOutput   = "ResealOutput"
	EventQualityScore   = "QualityScoreEvent"
	EventPurchaseSealed = "PurchaseSealed"
)

// ResealOutput is emitted once per completed reseal computation. EncryptionKey is the
// network's ephemeral x25519 key the limbs are sealed under, Nonce is the call nonce.
type ResealOutput struct {
	Listing       PublicKey
	Record        PublicKey
	EncryptionKey [32]byte
	Nonce         [16]byte
	Limbs         [4][32]byte
}

// QualityScoreEvent is emitted by the accuracy scoring circuit that shares the log.
type QualityScoreEvent struct {
	AccuracyScore   [32]byte
	Nonce           [16]byte
	ComputationType string
}

// PurchaseSealed is emitted when the buyer capsule identifier is written to the record.
type PurchaseSealed struct {
	Listing   PublicKey
	Record    PublicKey
	Buyer     PublicKey
	CID       string
	Authority PublicKey
	Timestamp int64
}

// Event is one decoded program event together with the transaction it came from.
type Event struct {
	Name      string
	Signature string
	Slot      uint64
	// Payload is one of *ResealOutput, *QualityScoreEvent or *PurchaseSealed.
	Payload any
}

// LogNotification is one transaction's log output as pushed by the subscription.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	// Failed is true when the transaction did not succeed; its events are not applied.
	Failed bool
}

// LogStream is a live subscription to program logs. Notifications is closed when the
// stream ends; Err then reports why.
type LogStream interface {
	Notifications() <-chan LogNotification
	Err() error
	Close() error
}
