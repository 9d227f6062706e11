package core

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// errCodeValidationInvalidValue covers struct validation failures that are
// not missing-field errors (range violations, format mismatches).
const errCodeValidationInvalidValue types.ErrorCode = "validation_invalid_value"

// Validator wraps go-playground/validator and translates its failures into
// the service's structured error taxonomy. Handlers run request payloads
// through ValidateStruct before passing them to domain services.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with JSON tag names reported in error
// details, so clients see the wire-level field name rather than the Go one.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Validator{validate: v}
}

// ValidateStruct validates dst against its `validate` tags. It returns nil on
// success, or a *types.AppError (400) describing the first failing field.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(
			errCodeValidationInvalidValue,
			"request validation failed",
			err,
		)
	}

	first := verrs[0]
	details := map[string]any{
		"field": first.Field(),
		"rule":  first.Tag(),
	}

	if first.Tag() == "required" {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"missing required field: "+first.Field(),
			err,
		).WithDetails(details)
	}

	return types.NewAppError(
		errCodeValidationInvalidValue,
		"invalid value for field: "+first.Field(),
		err,
	).WithDetails(details)
}
