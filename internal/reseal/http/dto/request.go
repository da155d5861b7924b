// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	"github.com/chainsensors/capsules/internal/reseal/usecase"
	customValidation "github.com/chainsensors/capsules/internal/validation"
)

// SubmitResealRequest asks for the listing's capsule to be resealed to the buyer's key.
// The capsule is given either inline or by the blob id it was uploaded under.
type SubmitResealRequest struct {
	Listing           string   `json:"listing"`
	Record            string   `json:"record"`
	Buyer             string   `json:"buyer"`
	Payer             string   `json:"payer"`
	BuyerX25519Base64 string   `json:"buyerX25519Base64"`
	CapsuleNonce      string   `json:"capsuleNonceBase64"`
	Limbs             []string `json:"limbsBase64"`
	BlobID            string   `json:"blobId"`
}

func (r *SubmitResealRequest) inline() bool {
	return r.CapsuleNonce != "" || len(r.Limbs) > 0
}

// Validate checks field formats. Sizes are checked when the request is built.
func (r *SubmitResealRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Listing, validation.Required, customValidation.Base58Address),
		validation.Field(&r.Record, validation.Required, customValidation.Base58Address),
		validation.Field(&r.Buyer, validation.Required, customValidation.Base58Address),
		validation.Field(&r.Payer, validation.Required, customValidation.Base58Address),
		validation.Field(&r.BuyerX25519Base64, validation.Required, customValidation.Base64),
		validation.Field(&r.BlobID,
			validation.When(!r.inline(), validation.Required.Error("blobId or an inline capsule is required")),
			validation.When(r.inline(), validation.Empty.Error("must not be set together with an inline capsule")),
			customValidation.NoWhitespace,
		),
		validation.Field(&r.CapsuleNonce,
			validation.When(r.inline(), validation.Required),
			customValidation.Base64,
		),
		validation.Field(&r.Limbs,
			validation.When(r.inline(), validation.Required),
			validation.Each(customValidation.Base64),
		),
	)
}

// ToInput converts a validated request into the use case input.
func (r *SubmitResealRequest) ToInput() (*usecase.SubmitInput, error) {
	input := &usecase.SubmitInput{BlobID: r.BlobID}

	var err error
	for _, field := range []struct {
		dst *ledgerDomain.PublicKey
		src string
	}{
		{&input.ListingID, r.Listing},
		{&input.RecordID, r.Record},
		{&input.Buyer, r.Buyer},
		{&input.Payer, r.Payer},
	} {
		if *field.dst, err = ledgerDomain.ParsePublicKey(field.src); err != nil {
			return nil, err
		}
	}

	if input.BuyerX25519, err = base64.StdEncoding.DecodeString(r.BuyerX25519Base64); err != nil {
		return nil, err
	}
	if !r.inline() {
		return input, nil
	}
	if input.CapsuleNonce, err = base64.StdEncoding.DecodeString(r.CapsuleNonce); err != nil {
		return nil, err
	}
	input.Limbs = make([][]byte, len(r.Limbs))
	for i, limb := range r.Limbs {
		if input.Limbs[i], err = base64.StdEncoding.DecodeString(limb); err != nil {
			return nil, err
		}
	}
	return input, nil
}
