package walrus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	"github.com/chainsensors/capsules/internal/errors"
)

func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewStore(Config{
		PublisherURL:  server.URL,
		AggregatorURL: server.URL + "/",
		Timeout:       2 * time.Second,
		RetryMax:      1,
		RetryWaitMin:  time.Millisecond,
		RetryWaitMax:  5 * time.Millisecond,
	})
	require.NoError(t, err)
	return store
}

func TestNewStore_RequiresURLs(t *testing.T) {
	_, err := NewStore(Config{PublisherURL: "http://publisher"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestStore_Put(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		wantID       string
		wantExisting bool
	}{
		{
			name:     "newly created with blob object",
			response: `{"newlyCreated":{"blobObject":{"blobId":"new-id","size":144}}}`,
			wantID:   "new-id",
		},
		{
			name:     "newly created flat",
			response: `{"newlyCreated":{"blobId":"flat-id"}}`,
			wantID:   "flat-id",
		},
		{
			name:         "already certified",
			response:     `{"alreadyCertified":{"blobId":"old-id","endEpoch":10}}`,
			wantID:       "old-id",
			wantExisting: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody []byte
			store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/v1/blobs", r.URL.Path)
				assert.Equal(t, "3", r.URL.Query().Get("epochs"))
				gotBody, _ = io.ReadAll(r.Body)
				_, _ = w.Write([]byte(tt.response))
			}))

			blob, err := store.Put(context.Background(), []byte("capsule"), 3)
			require.NoError(t, err)
			assert.Equal(t, capsuleDomain.BlobID(tt.wantID), blob.ID)
			assert.Equal(t, tt.wantExisting, blob.Existing)
			assert.Equal(t, []byte("capsule"), gotBody)
		})
	}
}

func TestStore_Put_Errors(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		store := newTestStore(t, http.NotFoundHandler())
		_, err := store.Put(context.Background(), nil, 1)
		assert.ErrorIs(t, err, capsuleDomain.ErrEmptyContent)
	})

	t.Run("response without id", func(t *testing.T) {
		store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		_, err := store.Put(context.Background(), []byte("x"), 1)
		assert.ErrorIs(t, err, errors.ErrUnavailable)
	})

	t.Run("client error status", func(t *testing.T) {
		store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
		}))
		_, err := store.Put(context.Background(), []byte("x"), 1)
		assert.ErrorIs(t, err, capsuleDomain.ErrStoreUnavailable)
	})

	t.Run("server errors are retried then reported unavailable", func(t *testing.T) {
		var calls atomic.Int32
		store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		_, err := store.Put(context.Background(), []byte("x"), 1)
		assert.ErrorIs(t, err, capsuleDomain.ErrStoreUnavailable)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestStore_Get(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/v1/blobs/present":
			_, _ = w.Write([]byte("capsule bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	data, err := store.Get(context.Background(), "present")
	require.NoError(t, err)
	assert.Equal(t, []byte("capsule bytes"), data)

	_, err = store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, capsuleDomain.ErrBlobNotFound)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, capsuleDomain.ErrInvalidBlobID)
}

func TestStore_Get_Oversized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/blobs/exact":
			_, _ = w.Write([]byte("12345678"))
		default:
			_, _ = w.Write([]byte("123456789"))
		}
	}))
	t.Cleanup(server.Close)

	store, err := NewStore(Config{
		PublisherURL:  server.URL,
		AggregatorURL: server.URL,
		MaxBlobSize:   8,
	})
	require.NoError(t, err)

	data, err := store.Get(context.Background(), "exact")
	require.NoError(t, err)
	assert.Len(t, data, 8)

	data, err = store.Get(context.Background(), "oversized")
	assert.ErrorIs(t, err, capsuleDomain.ErrBlobTooLarge)
	assert.Nil(t, data)
}
