// Package client registers device capsules with the marketplace backend.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
	"github.com/chainsensors/capsules/internal/errors"
)

const uploadPath = "/v1/capsules/upload"

// BackendConfig configures the backend client.
type BackendConfig struct {
	URL          string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
}

// BackendClient uploads capsules to the backend's capsule store endpoint.
type BackendClient struct {
	client  *retryablehttp.Client
	baseURL string
}

type uploadRequest struct {
	CapsuleBase64 string `json:"capsuleBase64,omitempty"`
	DEKBase64     string `json:"dekBase64,omitempty"`
}

type uploadResponse struct {
	BlobID string `json:"blobId"`
}

// NewBackendClient creates a client. Connection errors and 5xx/429 responses are retried.
func NewBackendClient(cfg BackendConfig) (*BackendClient, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "backend url is required")
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

	return &BackendClient{client: client, baseURL: strings.TrimRight(cfg.URL, "/")}, nil
}

// RegisterCapsule uploads a capsule sealed on the device and returns its blob id.
func (c *BackendClient) RegisterCapsule(ctx context.Context, capsule []byte) (string, error) {
	return c.upload(ctx, uploadRequest{CapsuleBase64: base64.StdEncoding.EncodeToString(capsule)})
}

// RegisterDEK hands the plaintext DEK to the backend, which seals it on arrival.
func (c *BackendClient) RegisterDEK(ctx context.Context, dek []byte) (string, error) {
	return c.upload(ctx, uploadRequest{DEKBase64: base64.StdEncoding.EncodeToString(dek)})
}

func (c *BackendClient) upload(ctx context.Context, body uploadRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(deviceDomain.ErrRegistrationFailed, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		target := deviceDomain.ErrRegistrationFailed
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			target = deviceDomain.ErrRegistrationRejected
		}
		return "", errors.Wrapf(target, "upload failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.BlobID == "" {
		return "", errors.Wrap(deviceDomain.ErrRegistrationFailed, "upload response has no blob id")
	}
	return out.BlobID, nil
}
