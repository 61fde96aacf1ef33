package validation

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Error is an implementation of the 'error' interface, which represents an
// error of validation.
type Error struct {
	Type   ErrorType
	Field  string
	Reason string
}

// ErrorType is a type of error during validation.
type ErrorType string

const (
	// ErrorTypeRequired represents that this value is required.
	ErrorTypeRequired ErrorType = "FieldValueRequired"
	// ErrorTypeInvalid represents that the given value is invalid.
	ErrorTypeInvalid ErrorType = "FieldValueInvalid"
)

func (v Error) Error() string {
	var msg string
	switch v.Type {
	case ErrorTypeRequired:
		msg = "required value"
	case ErrorTypeInvalid:
		msg = "invalid value"
	default:
		msg = "unhandled error code"
	}
	if len(v.Reason) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, v.Reason)
	}
	return fmt.Sprintf("%s: %s", v.Field, msg)
}

// NewFieldRequired returns a *Error indicating "value required"
func NewFieldRequired(field string) Error {
	return Error{Type: ErrorTypeRequired, Field: field}
}

// NewFieldInvalidValue returns a Error indicating "invalid value"
func NewFieldInvalidValue(field string) Error {
	return Error{Type: ErrorTypeInvalid, Field: field}
}

// NewFieldInvalidValueWithReason returns a Error indicating "invalid value"
// and a reason for the error
func NewFieldInvalidValueWithReason(field, reason string) Error {
	return Error{Type: ErrorTypeInvalid, Field: field, Reason: reason}
}

// NewValidationError joins the validation errors into a single error, nil
// when there are none.
func NewValidationError(errs []Error) error {
	var result *multierror.Error
	for _, e := range errs {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}
