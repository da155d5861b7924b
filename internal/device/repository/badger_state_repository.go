// Package repository persists device key generations in a local badger store.
package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
	"github.com/chainsensors/capsules/internal/errors"
)

type generationRecord struct {
	WrappedDEK   []byte     `json:"wrapped_dek"`
	BlobID       string     `json:"blob_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

// BadgerStateRepository stores, per device, a current generation pointer under
// device/<id>/current and one entry per generation under device/<id>/gen/<number>.
type BadgerStateRepository struct {
	db *badger.DB
}

// NewBadgerStateRepository creates a repository over db.
func NewBadgerStateRepository(db *badger.DB) *BadgerStateRepository {
	return &BadgerStateRepository{db: db}
}

func currentKey(deviceID string) []byte {
	return []byte("device/" + deviceID + "/current")
}

func generationPrefix(deviceID string) []byte {
	return []byte("device/" + deviceID + "/gen/")
}

// Generation numbers are zero padded so that iteration order is numeric order.
func generationKey(deviceID string, number uint32) []byte {
	return fmt.Appendf(generationPrefix(deviceID), "%010d", number)
}

// Current returns the current generation or ErrNotInitialized.
func (r *BadgerStateRepository) Current(ctx context.Context, deviceID string) (*deviceDomain.Generation, error) {
	var gen *deviceDomain.Generation
	err := r.db.View(func(txn *badger.Txn) error {
		number, err := readCurrent(txn, deviceID)
		if err != nil {
			return err
		}
		if number == 0 {
			return deviceDomain.ErrNotInitialized
		}
		gen, err = readGeneration(txn, deviceID, number)
		return err
	})
	if err != nil {
		return nil, wrapError(err, "failed to load current generation")
	}
	return gen, nil
}

// Get returns generation number or ErrUnknownGeneration.
func (r *BadgerStateRepository) Get(
	ctx context.Context,
	deviceID string,
	number uint32,
) (*deviceDomain.Generation, error) {
	var gen *deviceDomain.Generation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		gen, err = readGeneration(txn, deviceID, number)
		return err
	})
	if err != nil {
		return nil, wrapError(err, "failed to load generation")
	}
	return gen, nil
}

// List returns every generation in ascending order together with the current pointer.
func (r *BadgerStateRepository) List(ctx context.Context, deviceID string) (*deviceDomain.State, error) {
	state := &deviceDomain.State{DeviceID: deviceID, Generations: make([]*deviceDomain.Generation, 0)}
	prefix := generationPrefix(deviceID)

	err := r.db.View(func(txn *badger.Txn) error {
		current, err := readCurrent(txn, deviceID)
		if err != nil {
			return err
		}
		state.Current = current

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var number uint32
			if _, err := fmt.Sscanf(string(item.Key()[len(prefix):]), "%d", &number); err != nil {
				return fmt.Errorf("invalid generation key %q: %w", item.Key(), err)
			}
			err := item.Value(func(val []byte) error {
				gen, err := decode(number, val)
				if err != nil {
					return err
				}
				state.Generations = append(state.Generations, gen)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "failed to list generations")
	}
	return state, nil
}

// Advance stores next and makes it current. next.Number must follow the current
// generation directly; otherwise, or when another writer commits first, it fails with
// ErrGenerationConflict. The previous generation is marked superseded.
func (r *BadgerStateRepository) Advance(ctx context.Context, deviceID string, next *deviceDomain.Generation) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		current, err := readCurrent(txn, deviceID)
		if err != nil {
			return err
		}
		if next.Number != current+1 {
			return deviceDomain.ErrGenerationConflict
		}

		if current > 0 {
			prev, err := readGeneration(txn, deviceID, current)
			if err != nil {
				return err
			}
			at := next.CreatedAt
			prev.SupersededAt = &at
			if err := writeGeneration(txn, deviceID, prev); err != nil {
				return err
			}
		}

		if err := writeGeneration(txn, deviceID, next); err != nil {
			return err
		}
		var pointer [4]byte
		binary.BigEndian.PutUint32(pointer[:], next.Number)
		return txn.Set(currentKey(deviceID), pointer[:])
	})
	if errors.Is(err, badger.ErrConflict) {
		return deviceDomain.ErrGenerationConflict
	}
	return wrapError(err, "failed to advance generation")
}

// SetBlobID records the registered capsule of generation number. Recording the same
// identifier again is a no-op.
func (r *BadgerStateRepository) SetBlobID(
	ctx context.Context,
	deviceID string,
	number uint32,
	blobID string,
	at time.Time,
) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		gen, err := readGeneration(txn, deviceID, number)
		if err != nil {
			return err
		}
		if gen.BlobID == blobID {
			return nil
		}
		gen.BlobID = blobID
		gen.RegisteredAt = &at
		return writeGeneration(txn, deviceID, gen)
	})
	if errors.Is(err, badger.ErrConflict) {
		return deviceDomain.ErrGenerationConflict
	}
	return wrapError(err, "failed to record blob id")
}

func readCurrent(txn *badger.Txn, deviceID string) (uint32, error) {
	item, err := txn.Get(currentKey(deviceID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var number uint32
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("invalid current generation pointer of %d bytes", len(val))
		}
		number = binary.BigEndian.Uint32(val)
		return nil
	})
	return number, err
}

func readGeneration(txn *badger.Txn, deviceID string, number uint32) (*deviceDomain.Generation, error) {
	item, err := txn.Get(generationKey(deviceID, number))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, deviceDomain.ErrUnknownGeneration
	}
	if err != nil {
		return nil, err
	}
	var gen *deviceDomain.Generation
	err = item.Value(func(val []byte) error {
		gen, err = decode(number, val)
		return err
	})
	return gen, err
}

func writeGeneration(txn *badger.Txn, deviceID string, gen *deviceDomain.Generation) error {
	data, err := json.Marshal(generationRecord{
		WrappedDEK:   gen.WrappedDEK,
		BlobID:       gen.BlobID,
		CreatedAt:    gen.CreatedAt,
		RegisteredAt: gen.RegisteredAt,
		SupersededAt: gen.SupersededAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode generation: %w", err)
	}
	return txn.Set(generationKey(deviceID, gen.Number), data)
}

func decode(number uint32, val []byte) (*deviceDomain.Generation, error) {
	var rec generationRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode generation %d: %w", number, err)
	}
	return &deviceDomain.Generation{
		Number:       number,
		WrappedDEK:   rec.WrappedDEK,
		BlobID:       rec.BlobID,
		CreatedAt:    rec.CreatedAt,
		RegisteredAt: rec.RegisteredAt,
		SupersededAt: rec.SupersededAt,
	}, nil
}

// wrapError keeps domain errors as they are and adds context to storage failures.
func wrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, deviceDomain.ErrNotInitialized) ||
		errors.Is(err, deviceDomain.ErrUnknownGeneration) ||
		errors.Is(err, deviceDomain.ErrGenerationConflict) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
