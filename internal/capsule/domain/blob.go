// Package domain defines the capsule store entities: opaque content-addressed blobs holding
// sealed DEKs and the identifiers that reference them.
package domain

import (
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// BlobID is the content identifier returned by the blob store.
type BlobID string

// String returns the identifier as stored.
func (id BlobID) String() string {
	return string(id)
}

// Blob describes a stored capsule.
type Blob struct {
	ID   BlobID
	Size int
	// Existing is true when the store already held identical content.
	Existing bool
}

// ComputeBlobID derives the identifier of content: blake2b-256 encoded as unpadded
// URL-safe base64. Identical bytes always yield the identical identifier.
func ComputeBlobID(content []byte) BlobID {
	sum := blake2b.Sum256(content)
	return BlobID(base64.RawURLEncoding.EncodeToString(sum[:]))
}

// CandidateIDs returns the encodings of id to try on fetch, in order: the identifier as
// given, its URL-safe base64 form and its standard base64 form. Duplicates are dropped.
// Store front-ends disagree on canonical encoding, so a fetch must accept all of them.
func CandidateIDs(id string) []string {
	raw := strings.TrimSpace(id)
	if raw == "" {
		return nil
	}

	urlSafe := strings.TrimRight(strings.NewReplacer("+", "-", "/", "_").Replace(raw), "=")

	standard := strings.NewReplacer("-", "+", "_", "/").Replace(urlSafe)
	if rem := len(standard) % 4; rem != 0 {
		standard += strings.Repeat("=", 4-rem)
	}

	out := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, candidate := range []string{raw, urlSafe, standard} {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
