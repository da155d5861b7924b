// Package http provides HTTP handlers for submitting resealings and querying their results.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainsensors/capsules/internal/httputil"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	"github.com/chainsensors/capsules/internal/reseal/http/dto"
	resealUseCase "github.com/chainsensors/capsules/internal/reseal/usecase"
	customValidation "github.com/chainsensors/capsules/internal/validation"
)

const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 5 * time.Minute
)

// ResealHandler handles reseal submissions and result queries.
type ResealHandler struct {
	resealUseCase resealUseCase.ResealUseCase
	logger        *slog.Logger
}

// NewResealHandler creates a new reseal handler.
func NewResealHandler(resealUseCase resealUseCase.ResealUseCase, logger *slog.Logger) *ResealHandler {
	return &ResealHandler{
		resealUseCase: resealUseCase,
		logger:        logger,
	}
}

// SubmitHandler builds and submits a reseal request.
// POST /v1/reseal - returns 202 Accepted once the ledger has acknowledged the request; the
// result is delivered asynchronously.
func (h *ResealHandler) SubmitHandler(c *gin.Context) {
	var req dto.SubmitResealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := req.ToInput()
	if err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	request, err := h.resealUseCase.Submit(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapRequestToResponse(request))
}

func (h *ResealHandler) parseKey(c *gin.Context, name string) (ledgerDomain.PublicKey, bool) {
	key, err := ledgerDomain.ParsePublicKey(c.Param(name))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return ledgerDomain.PublicKey{}, false
	}
	return key, true
}

// GetResealedCapsuleHandler returns the latest result for a purchase record.
// GET /v1/capsules/reseal/:record
func (h *ResealHandler) GetResealedCapsuleHandler(c *gin.Context) {
	record, ok := h.parseKey(c, "record")
	if !ok {
		return
	}

	result, err := h.resealUseCase.GetResealedCapsule(c.Request.Context(), record)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResealedCapsuleToResponse(result))
}

// GetStatusHandler reports a purchase record's progress.
// GET /v1/capsules/reseal/:record/status
func (h *ResealHandler) GetStatusHandler(c *gin.Context) {
	record, ok := h.parseKey(c, "record")
	if !ok {
		return
	}

	status, err := h.resealUseCase.GetStatus(c.Request.Context(), record)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// ListByListingHandler lists the results delivered for a listing.
// GET /v1/capsules/listing/:listing?offset=0&limit=50
func (h *ResealHandler) ListByListingHandler(c *gin.Context) {
	listing, ok := h.parseKey(c, "listing")
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	results, err := h.resealUseCase.ListByListing(c.Request.Context(), listing, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResealedCapsulesToListResponse(results))
}

// WaitHandler blocks until the record's result is delivered.
// GET /v1/reseal/:record/wait?timeout=30s - responds 408 when the timeout elapses first.
func (h *ResealHandler) WaitHandler(c *gin.Context) {
	record, ok := h.parseKey(c, "record")
	if !ok {
		return
	}

	timeout := defaultWaitTimeout
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxWaitTimeout {
			httputil.HandleBadRequestGin(c,
				fmt.Errorf("invalid timeout parameter: must be a duration between 0s and %s", maxWaitTimeout),
				h.logger,
			)
			return
		}
		timeout = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	result, err := h.resealUseCase.Wait(ctx, record)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResealedCapsuleToResponse(result))
}
