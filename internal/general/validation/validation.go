// Package validation checks inbound payload structs and turns the first
// failing field into a client-safe validation error.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"transport-connect/internal/general/apperr"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates s by its `validate` tags.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return apperr.Validation(describe(fields[0]), err)
	}
	return apperr.Validation("invalid payload", err)
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + param
	case "max":
		return field + " must be at most " + param
	case "oneof":
		return field + " must be one of: " + param
	case "uuid", "uuid4":
		return field + " must be a valid id"
	default:
		return field + " is invalid"
	}
}
