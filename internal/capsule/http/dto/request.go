// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	customValidation "github.com/chainsensors/capsules/internal/validation"
)

// UploadCapsuleRequest carries either a sealed capsule or, on the legacy path, a plaintext DEK.
// Exactly one of the fields must be set.
type UploadCapsuleRequest struct {
	DEKBase64     string `json:"dekBase64"`
	CapsuleBase64 string `json:"capsuleBase64"`
}

// Validate checks that exactly one payload is present and well formed.
func (r *UploadCapsuleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DEKBase64,
			validation.When(r.CapsuleBase64 == "", validation.Required.Error("dekBase64 or capsuleBase64 is required")),
			validation.When(r.CapsuleBase64 != "", validation.Empty.Error("must not be set together with capsuleBase64")),
			customValidation.Base64Length(cryptoDomain.KeySize),
		),
		validation.Field(&r.CapsuleBase64,
			customValidation.Base64Length(cryptoDomain.CapsuleSize),
		),
	)
}
