// Package domain defines the device DEK lifecycle: one DEK per key generation, each wrapped
// at rest and registered once with the capsule store.
package domain

import "time"

// FirstGeneration is the generation created by Init. Envelopes written before key
// generations were tracked carry generation 0 and are read with it.
const FirstGeneration uint32 = 1

// Generation is one DEK of the device.
type Generation struct {
	Number     uint32
	WrappedDEK []byte
	// BlobID is set once the sealed DEK has been registered.
	BlobID       string
	CreatedAt    time.Time
	RegisteredAt *time.Time
	// SupersededAt is set when a newer generation becomes current. Superseded generations
	// remain usable for decryption.
	SupersededAt *time.Time
}

// Registered reports whether the generation's capsule has been stored.
func (g *Generation) Registered() bool {
	return g.BlobID != ""
}

// State summarizes the device's generations.
type State struct {
	DeviceID    string
	Current     uint32
	Generations []*Generation
}
