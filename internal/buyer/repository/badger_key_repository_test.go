package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	buyerDomain "github.com/chainsensors/capsules/internal/buyer/domain"
	"github.com/chainsensors/capsules/internal/database"
	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

func openStore(t *testing.T) *badger.DB {
	t.Helper()
	db, err := database.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func pubkey(b byte) ledgerDomain.PublicKey {
	var pk ledgerDomain.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func newKey(listing, buyer ledgerDomain.PublicKey) *buyerDomain.EphemeralKey {
	key := &buyerDomain.EphemeralKey{
		Listing:           listing,
		Buyer:             buyer,
		WrappedPrivateKey: []byte("wrapped"),
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	key.PublicKey[0] = 9
	return key
}

func TestBadgerKeyRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerKeyRepository(openStore(t))
	key := newKey(pubkey(1), pubkey(2))

	require.NoError(t, repo.Create(ctx, key))

	got, err := repo.Get(ctx, key.Listing, key.Buyer)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	err = repo.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("ephemeral/" + key.Listing.String() + "/" + key.Buyer.String()))
		return err
	})
	assert.NoError(t, err)
}

func TestBadgerKeyRepository_CreateRejectsExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerKeyRepository(openStore(t))
	key := newKey(pubkey(1), pubkey(2))

	require.NoError(t, repo.Create(ctx, key))

	replacement := newKey(pubkey(1), pubkey(2))
	replacement.WrappedPrivateKey = []byte("other")
	err := repo.Create(ctx, replacement)
	assert.ErrorIs(t, err, buyerDomain.ErrKeyAlreadyExists)
	assert.ErrorIs(t, err, errors.ErrConflict)

	got, err := repo.Get(ctx, key.Listing, key.Buyer)
	require.NoError(t, err)
	assert.Equal(t, []byte("wrapped"), got.WrappedPrivateKey)
}

func TestBadgerKeyRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerKeyRepository(openStore(t))

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, newKey(pubkey(1), pubkey(2)))
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, buyerDomain.ErrKeyAlreadyExists)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestBadgerKeyRepository_GetMissing(t *testing.T) {
	repo := NewBadgerKeyRepository(openStore(t))

	_, err := repo.Get(context.Background(), pubkey(1), pubkey(2))
	assert.ErrorIs(t, err, buyerDomain.ErrKeyNotFound)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestBadgerKeyRepository_ListByListing(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerKeyRepository(openStore(t))

	require.NoError(t, repo.Create(ctx, newKey(pubkey(1), pubkey(2))))
	require.NoError(t, repo.Create(ctx, newKey(pubkey(1), pubkey(3))))
	require.NoError(t, repo.Create(ctx, newKey(pubkey(4), pubkey(2))))

	keys, err := repo.ListByListing(ctx, pubkey(1))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	for _, key := range keys {
		assert.Equal(t, pubkey(1), key.Listing)
	}

	keys, err = repo.ListByListing(ctx, pubkey(5))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBadgerKeyRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerKeyRepository(openStore(t))
	key := newKey(pubkey(1), pubkey(2))

	require.NoError(t, repo.Create(ctx, key))
	require.NoError(t, repo.Delete(ctx, key.Listing, key.Buyer))

	_, err := repo.Get(ctx, key.Listing, key.Buyer)
	assert.ErrorIs(t, err, buyerDomain.ErrKeyNotFound)

	assert.NoError(t, repo.Delete(ctx, key.Listing, key.Buyer))
	require.NoError(t, repo.Create(ctx, key))
}
