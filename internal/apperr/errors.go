// Package apperr defines the error kinds shared by services, stores and
// transports. Wrap a kind with errors.Wrap to add context; callers match it
// with errors.Is.
package apperr

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Invalid is returned when the input fails domain validation.
var Invalid = errors.New("invalid input")

// Unauthorized means no usable credential was presented.
var Unauthorized = errors.New("unauthorized")

// Forbidden means the caller is known but lacks the required role.
var Forbidden = errors.New("forbidden")

// NotFound indicates that the requested resource does not exist.
var NotFound = errors.New("not found")

// Conflict indicates a uniqueness or state conflict (HTTP 409).
var Conflict = errors.New("conflict")

// Upstream marks failures of an external provider (payments, identity).
var Upstream = errors.New("upstream failure")

// FieldError is a single per-field validation message.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries field errors and matches Invalid.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == Invalid
}

// FromValidator converts validator/v10 errors into a *ValidationError.
// Any other error is wrapped as Invalid.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(Invalid, err.Error())
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: lowerFirst(fe.Field()),
			Error: message(fe),
		})
	}
	return out
}

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the `validate` tags of a struct.
func Validate(v any) error {
	return FromValidator(validate.Struct(v))
}

// Field builds a single-field validation error.
func Field(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
