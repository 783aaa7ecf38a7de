package templates

import (
	"fmt"

	"github.com/ignite/promo-dispatch/internal/domain"
)

const (
	msgInvalidURL    = "Enter a valid URL"
	msgInvalidNumber = "Enter a valid number"
)

// Validate checks values against every field of def. An empty result means
// the values may be rendered and dispatched.
func Validate(def *domain.TemplateDefinition, values domain.FieldValues) domain.FieldErrors {
	errs := domain.FieldErrors{}
	for _, f := range def.Fields {
		v := values[f.Name]
		if isBlank(v) {
			if f.Required {
				errs[f.Name] = requiredMessage(f)
			}
			continue
		}
		switch f.Type {
		case domain.FieldURL:
			if !IsSafeURL(rawString(v)) {
				errs[f.Name] = msgInvalidURL
			}
		case domain.FieldNumber:
			if _, ok := parseNumber(v); !ok {
				errs[f.Name] = msgInvalidNumber
			}
		}
	}
	return errs
}

// HasMissingRequired reports whether any required field is blank. Type errors
// are deliberately not considered.
func HasMissingRequired(def *domain.TemplateDefinition, values domain.FieldValues) bool {
	for _, f := range def.Fields {
		if f.Required && isBlank(values[f.Name]) {
			return true
		}
	}
	return false
}

// DefaultValues returns the template defaults as field values, the state an
// operator sees when opening the send flow.
func DefaultValues(def *domain.TemplateDefinition) domain.FieldValues {
	out := make(domain.FieldValues, len(def.Fields))
	for _, f := range def.Fields {
		out[f.Name] = f.DefaultValue
	}
	return out
}

func requiredMessage(f domain.FieldSpec) string {
	label := f.Label
	if label == "" {
		label = f.Name
	}
	return fmt.Sprintf("%s is required", label)
}
