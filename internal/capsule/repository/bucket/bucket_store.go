// Package bucket implements the capsule blob store on a gocloud.dev/blob bucket.
package bucket

import (
	"context"
	"fmt"
	"strconv"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Register local bucket drivers
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	"github.com/chainsensors/capsules/internal/errors"
)

const keyPrefix = "capsules/"

// Store keeps capsules in a bucket under capsules/<blobId>. The identifier is derived
// from the content, so storing identical bytes twice is a no-op.
type Store struct {
	bucket *blob.Bucket
}

// Open opens the bucket at url (file:///path, mem://).
func Open(ctx context.Context, url string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob bucket: %w", err)
	}
	return NewStore(bucket), nil
}

// NewStore wraps an already opened bucket.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Put stores content and returns its identifier. epochs is recorded as metadata only.
func (s *Store) Put(ctx context.Context, content []byte, epochs int) (*capsuleDomain.Blob, error) {
	if len(content) == 0 {
		return nil, capsuleDomain.ErrEmptyContent
	}

	id := capsuleDomain.ComputeBlobID(content)
	key := keyPrefix + id.String()

	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, err.Error())
	}
	if exists {
		return &capsuleDomain.Blob{ID: id, Size: len(content), Existing: true}, nil
	}

	opts := &blob.WriterOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"epochs": strconv.Itoa(epochs)},
	}
	if err := s.bucket.WriteAll(ctx, key, content, opts); err != nil {
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, err.Error())
	}

	return &capsuleDomain.Blob{ID: id, Size: len(content)}, nil
}

// Get returns the content stored under id exactly as given.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, capsuleDomain.ErrInvalidBlobID
	}

	data, err := s.bucket.ReadAll(ctx, keyPrefix+id)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, capsuleDomain.ErrBlobNotFound
		}
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, err.Error())
	}
	return data, nil
}

// Close closes the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
