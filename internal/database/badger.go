package database

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the local key-value store at path. An empty path opens an in-memory
// store, which is what tests use.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}
	return db, nil
}
