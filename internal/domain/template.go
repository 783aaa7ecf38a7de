package domain

// FieldType enumerates the kinds of operator-supplied template inputs.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldURL      FieldType = "url"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldURL:
		return true
	}
	return false
}

// FieldSpec declares one dynamic field of a template. Name is the
// interpolation key used by the template body.
type FieldSpec struct {
	Name         string    `json:"name" yaml:"name"`
	Label        string    `json:"label" yaml:"label"`
	Type         FieldType `json:"type" yaml:"type"`
	Required     bool      `json:"required" yaml:"required"`
	DefaultValue string    `json:"default_value,omitempty" yaml:"default"`
	HelperText   string    `json:"helper_text,omitempty" yaml:"helper_text"`
	// Itemized textarea values render as <li> items, one per non-blank line.
	Itemized bool `json:"itemized,omitempty" yaml:"itemized"`
}

// TemplateDefinition is a named, parametrized promotional message. Definitions
// are loaded once into the registry and never mutated afterwards.
type TemplateDefinition struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Category       string      `json:"category" yaml:"category"`
	DefaultSubject string      `json:"default_subject" yaml:"default_subject"`
	Fields         []FieldSpec `json:"fields" yaml:"fields"`
	Body           string      `json:"-" yaml:"body"`
}

// Field returns the FieldSpec for name, if declared.
func (t *TemplateDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldValues maps FieldSpec.Name to the raw operator-supplied value. Values
// are strings or numbers (float64 when decoded from JSON).
type FieldValues map[string]any

// FieldErrors maps a field name to a human-readable validation message.
type FieldErrors map[string]string
