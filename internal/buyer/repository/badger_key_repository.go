// Package repository persists buyer ephemeral keys in a local badger store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	buyerDomain "github.com/chainsensors/capsules/internal/buyer/domain"
	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

const keyPrefix = "ephemeral/"

type keyRecord struct {
	PublicKey         []byte    `json:"public_key"`
	WrappedPrivateKey []byte    `json:"wrapped_private_key"`
	CreatedAt         time.Time `json:"created_at"`
}

// BadgerKeyRepository stores one ephemeral key per listing and buyer under
// ephemeral/<listing>/<buyer>.
type BadgerKeyRepository struct {
	db *badger.DB
}

// NewBadgerKeyRepository creates a repository over db.
func NewBadgerKeyRepository(db *badger.DB) *BadgerKeyRepository {
	return &BadgerKeyRepository{db: db}
}

func storageKey(listing, buyer ledgerDomain.PublicKey) []byte {
	return []byte(keyPrefix + listing.String() + "/" + buyer.String())
}

// Create persists key. It fails with ErrKeyAlreadyExists when the pair already has a key,
// including when a concurrent Create commits first.
func (r *BadgerKeyRepository) Create(ctx context.Context, key *buyerDomain.EphemeralKey) error {
	data, err := json.Marshal(keyRecord{
		PublicKey:         key.PublicKey[:],
		WrappedPrivateKey: key.WrappedPrivateKey,
		CreatedAt:         key.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode ephemeral key: %w", err)
	}

	k := storageKey(key.Listing, key.Buyer)
	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return buyerDomain.ErrKeyAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(k, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return buyerDomain.ErrKeyAlreadyExists
	}
	if err != nil && !errors.Is(err, buyerDomain.ErrKeyAlreadyExists) {
		return fmt.Errorf("failed to store ephemeral key: %w", err)
	}
	return err
}

// Get loads the key for listing and buyer.
func (r *BadgerKeyRepository) Get(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) (*buyerDomain.EphemeralKey, error) {
	var key *buyerDomain.EphemeralKey
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey(listing, buyer))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			key, err = decode(listing, buyer, val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, buyerDomain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ephemeral key: %w", err)
	}
	return key, nil
}

// ListByListing returns every key stored for listing.
func (r *BadgerKeyRepository) ListByListing(
	ctx context.Context,
	listing ledgerDomain.PublicKey,
) ([]*buyerDomain.EphemeralKey, error) {
	prefix := []byte(keyPrefix + listing.String() + "/")
	keys := make([]*buyerDomain.EphemeralKey, 0)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			buyer, err := ledgerDomain.ParsePublicKey(string(item.Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("invalid key path %q: %w", item.Key(), err)
			}
			err = item.Value(func(val []byte) error {
				key, err := decode(listing, buyer, val)
				if err != nil {
					return err
				}
				keys = append(keys, key)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ephemeral keys: %w", err)
	}
	return keys, nil
}

// Delete removes the key for listing and buyer. Deleting a missing key is not an error.
func (r *BadgerKeyRepository) Delete(ctx context.Context, listing, buyer ledgerDomain.PublicKey) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(storageKey(listing, buyer))
	})
	if err != nil {
		return fmt.Errorf("failed to delete ephemeral key: %w", err)
	}
	return nil
}

func decode(listing, buyer ledgerDomain.PublicKey, val []byte) (*buyerDomain.EphemeralKey, error) {
	var rec keyRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode ephemeral key: %w", err)
	}
	key := &buyerDomain.EphemeralKey{
		Listing:           listing,
		Buyer:             buyer,
		WrappedPrivateKey: rec.WrappedPrivateKey,
		CreatedAt:         rec.CreatedAt,
	}
	if copy(key.PublicKey[:], rec.PublicKey) != len(key.PublicKey) {
		return nil, fmt.Errorf("failed to decode ephemeral key: public key has %d bytes", len(rec.PublicKey))
	}
	return key, nil
}
