package dto

import (
	"encoding/base64"
	"time"

	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
	"github.com/chainsensors/capsules/internal/reseal/usecase"
)

// ResealRequestResponse reports a submitted request.
type ResealRequestResponse struct {
	RequestID         string    `json:"requestId"`
	Listing           string    `json:"listing"`
	Record            string    `json:"record"`
	Status            string    `json:"status"`
	Signature         string    `json:"signature,omitempty"`
	ComputationOffset uint64    `json:"computationOffset"`
	Attempts          int       `json:"attempts"`
	LastError         *string   `json:"lastError,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// MapRequestToResponse converts a request to its response.
func MapRequestToResponse(req *resealDomain.ResealRequest) ResealRequestResponse {
	return ResealRequestResponse{
		RequestID:         req.ID.String(),
		Listing:           req.ListingID.String(),
		Record:            req.RecordID.String(),
		Status:            string(req.Status),
		Signature:         req.Signature,
		ComputationOffset: req.ComputationOffset,
		Attempts:          req.Attempts,
		LastError:         req.LastError,
		CreatedAt:         req.CreatedAt,
	}
}

// ResealedCapsuleResponse is a delivered result. CapsuleBase64 is the buyer capsule in the
// same wire form the capsule store accepts.
type ResealedCapsuleResponse struct {
	ID                  string    `json:"id"`
	RequestID           *string   `json:"requestId,omitempty"`
	Listing             string    `json:"listing"`
	Record              string    `json:"record"`
	Signature           string    `json:"signature"`
	Slot                uint64    `json:"slot"`
	EncryptionKeyBase64 string    `json:"encryptionKeyBase64"`
	NonceBase64         string    `json:"nonceBase64"`
	LimbsBase64         []string  `json:"limbsBase64"`
	CapsuleBase64       string    `json:"capsuleBase64"`
	BuyerCapsuleBlobID  *string   `json:"buyerCapsuleBlobId,omitempty"`
	Finalized           bool      `json:"finalized"`
	CreatedAt           time.Time `json:"createdAt"`
}

// MapResealedCapsuleToResponse converts a result to its response.
func MapResealedCapsuleToResponse(result *resealDomain.ResealedCapsule) ResealedCapsuleResponse {
	resp := ResealedCapsuleResponse{
		ID:                  result.ID.String(),
		Listing:             result.ListingID.String(),
		Record:              result.RecordID.String(),
		Signature:           result.Signature,
		Slot:                result.Slot,
		EncryptionKeyBase64: base64.StdEncoding.EncodeToString(result.EncryptionKey[:]),
		NonceBase64:         base64.StdEncoding.EncodeToString(result.Nonce[:]),
		LimbsBase64:         make([]string, len(result.Limbs)),
		BuyerCapsuleBlobID:  result.BuyerCapsuleBlobID,
		Finalized:           result.Finalized,
		CreatedAt:           result.CreatedAt,
	}
	if result.RequestID != nil {
		id := result.RequestID.String()
		resp.RequestID = &id
	}
	for i := range result.Limbs {
		resp.LimbsBase64[i] = base64.StdEncoding.EncodeToString(result.Limbs[i][:])
	}
	if content, err := result.SealedCapsule().MarshalBinary(); err == nil {
		resp.CapsuleBase64 = base64.StdEncoding.EncodeToString(content)
	}
	return resp
}

// ListResealedCapsulesResponse is a page of results.
type ListResealedCapsulesResponse struct {
	Data []ResealedCapsuleResponse `json:"data"`
}

// MapResealedCapsulesToListResponse converts a page of results.
func MapResealedCapsulesToListResponse(results []*resealDomain.ResealedCapsule) ListResealedCapsulesResponse {
	data := make([]ResealedCapsuleResponse, 0, len(results))
	for _, result := range results {
		data = append(data, MapResealedCapsuleToResponse(result))
	}
	return ListResealedCapsulesResponse{Data: data}
}

// RecordStatusResponse reports a purchase record's progress.
type RecordStatusResponse struct {
	Record             string  `json:"record"`
	Status             string  `json:"status"`
	Ready              bool    `json:"ready"`
	Finalized          bool    `json:"finalized"`
	BuyerCapsuleBlobID *string `json:"buyerCapsuleBlobId,omitempty"`
}

// MapStatusToResponse converts a record status.
func MapStatusToResponse(status *usecase.RecordStatus) RecordStatusResponse {
	return RecordStatusResponse{
		Record:             status.Record.String(),
		Status:             string(status.Status),
		Ready:              status.Ready,
		Finalized:          status.Finalized,
		BuyerCapsuleBlobID: status.BuyerCapsuleBlobID,
	}
}
