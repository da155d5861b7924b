// Package http provides HTTP handlers for the DEK capsule store.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chainsensors/capsules/internal/capsule/http/dto"
	capsuleUseCase "github.com/chainsensors/capsules/internal/capsule/usecase"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	"github.com/chainsensors/capsules/internal/httputil"
	customValidation "github.com/chainsensors/capsules/internal/validation"
)

// CapsuleHandler handles capsule upload and blob fetch requests.
type CapsuleHandler struct {
	capsuleUseCase capsuleUseCase.CapsuleUseCase
	logger         *slog.Logger
}

// NewCapsuleHandler creates a new capsule handler.
func NewCapsuleHandler(capsuleUseCase capsuleUseCase.CapsuleUseCase, logger *slog.Logger) *CapsuleHandler {
	return &CapsuleHandler{
		capsuleUseCase: capsuleUseCase,
		logger:         logger,
	}
}

// UploadHandler stores a sealed capsule.
// POST /v1/capsules/upload - body {capsuleBase64} or legacy {dekBase64}.
// Returns 201 Created with the blob id.
func (h *CapsuleHandler) UploadHandler(c *gin.Context) {
	var req dto.UploadCapsuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := c.Request.Context()
	if req.DEKBase64 != "" {
		dek, err := base64.StdEncoding.DecodeString(req.DEKBase64)
		if err != nil {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 DEK: %w", err), h.logger)
			return
		}
		// UploadDEK zeroes dek
		blob, err := h.capsuleUseCase.UploadDEK(ctx, dek)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusCreated, dto.MapBlobToUploadResponse(blob))
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.CapsuleBase64)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 capsule: %w", err), h.logger)
		return
	}
	if _, err := cryptoDomain.ParseSealedCapsule(content); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	blob, err := h.capsuleUseCase.Upload(ctx, content)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapBlobToUploadResponse(blob))
}

// GetBlobHandler returns a stored blob.
// GET /v1/capsules/blobs/*blobId - accepts standard or URL-safe base64 identifiers, so the
// parameter is a wildcard to admit '/'.
func (h *CapsuleHandler) GetBlobHandler(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("blobId"), "/")

	content, err := h.capsuleUseCase.Fetch(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapContentToBlobResponse(id, content))
}
