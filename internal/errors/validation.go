package errors

import (
	"fmt"
	"strings"
)

// MetaValidation is the metadata key holding per-field validation messages
const MetaValidation = "validation_errors"

// ValidationBuilder collects field problems while a Config validates itself.
// Build returns nil when nothing was recorded.
type ValidationBuilder struct {
	order  []string
	fields map[string][]string
}

// NewValidationBuilder returns an empty builder
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{fields: make(map[string][]string)}
}

// Field records a problem with field
func (vb *ValidationBuilder) Field(field, message string) *ValidationBuilder {
	if _, seen := vb.fields[field]; !seen {
		vb.order = append(vb.order, field)
	}
	vb.fields[field] = append(vb.fields[field], message)
	return vb
}

// Fieldf records a formatted problem with field
func (vb *ValidationBuilder) Fieldf(field, format string, args ...any) *ValidationBuilder {
	return vb.Field(field, fmt.Sprintf(format, args...))
}

// RequiredField records a missing field
func (vb *ValidationBuilder) RequiredField(field string) *ValidationBuilder {
	return vb.Field(field, "is required")
}

// Build returns an INVALID_ARGUMENT error listing the fields in the order
// they were recorded, or nil.
func (vb *ValidationBuilder) Build() error {
	if len(vb.order) == 0 {
		return nil
	}

	parts := make([]string, 0, len(vb.order))
	for _, f := range vb.order {
		parts = append(parts, f+": "+strings.Join(vb.fields[f], ", "))
	}
	return InvalidArgument("validation failed: "+strings.Join(parts, "; ")).
		WithMeta(MetaValidation, vb.fields)
}

// ValidateRequired records a blank string field
func ValidateRequired(field, value string, vb *ValidationBuilder) {
	if strings.TrimSpace(value) == "" {
		vb.RequiredField(field)
	}
}

// ValidateBounds checks that a [min, max] pair is non-negative and ordered
func ValidateBounds(field string, minValue, maxValue int, vb *ValidationBuilder) {
	if minValue < 0 {
		vb.Fieldf(field, "minimum must not be negative, got %d", minValue)
	}
	if maxValue < minValue {
		vb.Fieldf(field, "maximum %d is below minimum %d", maxValue, minValue)
	}
}

// ValidatePositive records a float that is not strictly positive, NaN included
func ValidatePositive(field string, value float64, vb *ValidationBuilder) {
	if !(value > 0) {
		vb.Fieldf(field, "must be greater than 0, got %v", value)
	}
}
