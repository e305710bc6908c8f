package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	skuRegex        = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	descriptorRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func ValidateSKU(sku, fieldName string) error {
	if sku == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	sku = SanitizeString(sku)

	if len(sku) > 64 {
		return &ValidationError{
			Field:   fieldName,
			Message: "cannot exceed 64 characters",
		}
	}

	if !skuRegex.MatchString(sku) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must contain only letters, digits, dots, dashes and underscores",
		}
	}

	return nil
}

func ValidatePageDescriptor(descriptor string) error {
	if descriptor == "" {
		return &ValidationError{
			Field:   "descriptor",
			Message: "is required",
		}
	}

	descriptor = SanitizeString(descriptor)

	if !descriptorRegex.MatchString(descriptor) {
		return &ValidationError{
			Field:   "descriptor",
			Message: "must be lowercase letters, digits and dashes",
		}
	}

	return nil
}

func ValidateQty(qty int, fieldName string) error {
	if qty <= 0 {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be positive",
		}
	}

	if qty > 1000 {
		return &ValidationError{
			Field:   fieldName,
			Message: "exceeds maximum allowed quantity",
		}
	}

	return nil
}

func ValidatePagination(page, size int) error {
	if page < 0 {
		return &ValidationError{
			Field:   "page",
			Message: "must be non-negative",
		}
	}

	if size < 0 {
		return &ValidationError{
			Field:   "size",
			Message: "must be non-negative",
		}
	}

	if size > 500 {
		return &ValidationError{
			Field:   "size",
			Message: "cannot exceed 500",
		}
	}

	return nil
}

func ValidateTrackingAction(action string) error {
	switch action {
	case "view", "click", "visit":
		return nil
	case "":
		return &ValidationError{
			Field:   "action",
			Message: "is required",
		}
	default:
		return &ValidationError{
			Field:   "action",
			Message: fmt.Sprintf("unknown action: %s", action),
		}
	}
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
