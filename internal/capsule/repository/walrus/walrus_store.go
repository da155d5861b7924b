// Package walrus implements the capsule blob store on a Walrus publisher and aggregator.
package walrus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	"github.com/chainsensors/capsules/internal/errors"
)

// defaultMaxBlobSize bounds the bytes read back from the aggregator.
const defaultMaxBlobSize = 16 << 20

// Config configures the Walrus client.
type Config struct {
	PublisherURL  string
	AggregatorURL string
	Timeout       time.Duration
	RetryMax      int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	// MaxBlobSize is the largest blob Get accepts; zero means 16 MiB.
	MaxBlobSize int64
	Logger      *slog.Logger
}

// Store talks to Walrus over HTTP. Uploads go to the publisher, reads to the aggregator.
type Store struct {
	client      *retryablehttp.Client
	publisher   string
	aggregator  string
	maxBlobSize int64
}

type publishResponse struct {
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
	NewlyCreated *struct {
		BlobObject *struct {
			BlobID string `json:"blobId"`
			Size   int    `json:"size"`
		} `json:"blobObject"`
		BlobID string `json:"blobId"`
	} `json:"newlyCreated"`
}

// NewStore creates a Walrus store. Transient failures (connection errors, 5xx, 429) are
// retried by the underlying retryablehttp client.
func NewStore(cfg Config) (*Store, error) {
	if cfg.PublisherURL == "" || cfg.AggregatorURL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "walrus publisher and aggregator URLs are required")
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	if cfg.Logger != nil {
		client.Logger = cfg.Logger
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.RetryMax > 0 {
		client.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}

	maxBlobSize := cfg.MaxBlobSize
	if maxBlobSize <= 0 {
		maxBlobSize = defaultMaxBlobSize
	}

	return &Store{
		client:      client,
		publisher:   strings.TrimRight(cfg.PublisherURL, "/"),
		aggregator:  strings.TrimRight(cfg.AggregatorURL, "/"),
		maxBlobSize: maxBlobSize,
	}, nil
}

// Put uploads content to the publisher. Walrus reports either a newly created blob or an
// already certified one; both carry the identifier.
func (s *Store) Put(ctx context.Context, content []byte, epochs int) (*capsuleDomain.Blob, error) {
	if len(content) == 0 {
		return nil, capsuleDomain.ErrEmptyContent
	}
	if epochs < 1 {
		epochs = 1
	}

	endpoint := fmt.Sprintf("%s/v1/blobs?epochs=%s", s.publisher, strconv.Itoa(epochs))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Wrapf(
			capsuleDomain.ErrStoreUnavailable,
			"walrus publish failed with status %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(body)),
		)
	}

	var out publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, "invalid walrus publish response")
	}

	blob := &capsuleDomain.Blob{Size: len(content)}
	switch {
	case out.AlreadyCertified != nil && out.AlreadyCertified.BlobID != "":
		blob.ID = capsuleDomain.BlobID(out.AlreadyCertified.BlobID)
		blob.Existing = true
	case out.NewlyCreated != nil && out.NewlyCreated.BlobObject != nil && out.NewlyCreated.BlobObject.BlobID != "":
		blob.ID = capsuleDomain.BlobID(out.NewlyCreated.BlobObject.BlobID)
	case out.NewlyCreated != nil && out.NewlyCreated.BlobID != "":
		blob.ID = capsuleDomain.BlobID(out.NewlyCreated.BlobID)
	default:
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, "walrus publish response has no blob id")
	}

	return blob, nil
}

// Get reads a blob from the aggregator using id exactly as given.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, capsuleDomain.ErrInvalidBlobID
	}

	endpoint := fmt.Sprintf("%s/v1/blobs/%s", s.aggregator, url.PathEscape(id))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, capsuleDomain.ErrBlobNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errors.Wrapf(
			capsuleDomain.ErrStoreUnavailable,
			"walrus fetch failed with status %d",
			resp.StatusCode,
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBlobSize+1))
	if err != nil {
		return nil, errors.Wrap(capsuleDomain.ErrStoreUnavailable, err.Error())
	}
	if int64(len(data)) > s.maxBlobSize {
		return nil, errors.Wrapf(capsuleDomain.ErrBlobTooLarge, "blob %s exceeds %d bytes", id, s.maxBlobSize)
	}
	return data, nil
}
