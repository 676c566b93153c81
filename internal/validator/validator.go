// Package validator adapts go-playground/validator to echo's Validator
// interface. Request DTOs declare `validate` tags and handlers call
// c.Validate(&dto) before touching business logic; violations come back as
// an ordered field/message list so the client sees every problem at once.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single field violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors is the full list of violations for one request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// RequestValidator implements echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// New returns a ready RequestValidator.
func New() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate checks the struct tags on i and translates any violations into
// ValidationErrors. Non-struct input is reported as-is.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or greater", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid4", "uuid":
		return "must be a valid uuid"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
