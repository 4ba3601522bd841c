package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error is returned for input that fails validation. Nothing has been written
// when a caller receives it.
type Error struct {
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string { return e.Message }

// New builds a validation error, optionally bound to fields.
func New(msg string, fields ...FieldError) error {
	return &Error{Message: msg, Fields: fields}
}

// Is reports whether err (or its cause) is a validation error.
func Is(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// Struct validates v using its `validate` tags.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		text := message(fe)
		fields = append(fields, FieldError{Field: fe.Namespace(), Error: text})
		msgs = append(msgs, text)
	}
	return &Error{Message: strings.Join(msgs, "; "), Fields: fields}
}

func message(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "min":
		return fmt.Sprintf("%s must have at least %s items or characters", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s items or characters", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", name, strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}
