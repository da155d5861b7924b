package validation

import (
	"strings"

	validation "github.com/jellydator/validation"
	"github.com/mr-tron/base58"

	apperrors "github.com/chainsensors/capsules/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Base58Address validates a base58 string decoding to a 32-byte ledger address.
var Base58Address = validation.NewStringRuleWithError(
	func(s string) bool {
		decoded, err := base58.Decode(s)
		return err == nil && len(decoded) == 32
	},
	validation.NewError("validation_base58_address", "must be a base58-encoded 32-byte address"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
