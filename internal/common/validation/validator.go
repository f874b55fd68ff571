// Package validation accumulates input and configuration problems so callers
// can report all of them at once.
//
// Simple checks are fluent methods on Validator. Struct-level rules are
// expressed as go-playground/validator tags and run through Struct.
package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"infolio/internal/common/errors"
)

var (
	tagValidator     *validator.Validate
	tagValidatorOnce sync.Once
)

// tags returns the shared tag validator. validator.Validate caches struct
// metadata and is safe for concurrent use.
func tags() *validator.Validate {
	tagValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "mapstructure"} {
				name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
		tagValidator = v
	})
	return tagValidator
}

// Validator accumulates validation errors
type Validator struct {
	errors []string
	prefix string
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithPrefix creates a new validator with a prefix for error messages
func NewValidatorWithPrefix(prefix string) *Validator {
	return &Validator{prefix: prefix}
}

// RequireString validates that a string is not empty
func (v *Validator) RequireString(value, name string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.addError("%s is required", name)
	}
	return v
}

// RequirePositive validates that an integer is positive
func (v *Validator) RequirePositive(value int, name string) *Validator {
	if value <= 0 {
		v.addError("%s must be positive", name)
	}
	return v
}

// RequireURL validates that a string is an absolute http(s) URL
func (v *Validator) RequireURL(value, name string) *Validator {
	if value == "" {
		v.addError("%s is required", name)
		return v
	}

	u, err := url.Parse(value)
	if err != nil {
		v.addError("%s must be a valid URL: %v", name, err)
		return v
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		v.addError("%s must be a complete http(s) URL", name)
	}
	return v
}

// RequireOneOf validates that a value is one of the allowed values
func (v *Validator) RequireOneOf(value string, allowed []string, name string) *Validator {
	if value == "" {
		v.addError("%s is required", name)
		return v
	}

	for _, a := range allowed {
		if value == a {
			return v
		}
	}

	v.addError("%s must be one of: %s", name, strings.Join(allowed, ", "))
	return v
}

// Var checks a single value against a validator tag such as "required,min=1".
func (v *Validator) Var(value interface{}, tag, name string) *Validator {
	if err := tags().Var(value, tag); err != nil {
		for _, fe := range fieldErrors(err) {
			v.addError("%s %s", name, describe(fe))
		}
	}
	return v
}

// Struct checks s against its `validate` struct tags.
func (v *Validator) Struct(s interface{}) *Validator {
	if err := tags().Struct(s); err != nil {
		fes := fieldErrors(err)
		if len(fes) == 0 {
			v.addError("%v", err)
		}
		for _, fe := range fes {
			v.addError("%s %s", fieldPath(fe), describe(fe))
		}
	}
	return v
}

// Validate runs a custom validation function
func (v *Validator) Validate(fn func() error) *Validator {
	if err := fn(); err != nil {
		v.addError("%s", err.Error())
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all accumulated messages
func (v *Validator) Errors() []string {
	return v.errors
}

// Error returns a ValidationError describing every problem, or nil
func (v *Validator) Error() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return errors.ValidationError(v.errors[0])
	default:
		return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(v.errors, "; ")))
	}
}

// Merge merges errors from another validator
func (v *Validator) Merge(other *Validator) *Validator {
	if other != nil && other.HasErrors() {
		v.errors = append(v.errors, other.errors...)
	}
	return v
}

func (v *Validator) addError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.prefix != "" {
		msg = fmt.Sprintf("%s: %s", v.prefix, msg)
	}
	v.errors = append(v.errors, msg)
}

func fieldErrors(err error) validator.ValidationErrors {
	if ves, ok := err.(validator.ValidationErrors); ok {
		return ves
	}
	return nil
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "url", "http_url":
		return "must be a valid URL"
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
