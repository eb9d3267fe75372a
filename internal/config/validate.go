package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Namespace(), Reason: reason(fe)}
		}
		return fmt.Errorf("failed to validate config: %w", err)
	}

	if want := len(c.Elements) - 1; len(c.Composition) != want {
		return &ValidationError{
			Field:  "Config.Composition",
			Reason: fmt.Sprintf("must list %d fractions (one per non-dependent element), got %d", want, len(c.Composition)),
		}
	}
	sum := 0.0
	for _, x := range c.Composition {
		sum += x
	}
	if sum >= 1 {
		return &ValidationError{Field: "Config.Composition", Reason: fmt.Sprintf("fractions sum to %g, leaving nothing for %s", sum, c.Elements[0])}
	}

	g := c.Temperatures
	if len(g.Values) == 0 {
		if g.Points < 1 {
			return &ValidationError{Field: "Config.Temperatures.Points", Reason: "must be at least 1"}
		}
		if g.Start <= 0 || g.Stop <= 0 {
			return &ValidationError{Field: "Config.Temperatures", Reason: "start and stop must be positive"}
		}
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must satisfy %s %s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	case "hostname_port":
		return "must be host:port"
	default:
		return "failed " + fe.Tag()
	}
}
