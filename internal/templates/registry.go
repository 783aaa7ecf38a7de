// Package templates holds the static promotional template registry together
// with the field validator and the content renderer.
//
// Templates are declared in catalog.yaml, embedded at build time and loaded
// once. The registry is read-only after construction and safe for concurrent
// use.
package templates

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"

	"github.com/ignite/promo-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

type catalogFile struct {
	Templates []domain.TemplateDefinition `yaml:"templates"`
}

// Registry resolves template definitions by id.
type Registry struct {
	byID  map[string]*domain.TemplateDefinition
	order []string
}

// Builtin loads the embedded catalog.
func Builtin() (*Registry, error) {
	return Load(builtinCatalog)
}

// Load parses a YAML catalog and checks every definition.
func Load(data []byte) (*Registry, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewRegistry(cf.Templates...)
}

// NewRegistry builds a registry from definitions. Definitions are copied so
// later mutation by the caller cannot leak into the registry.
func NewRegistry(defs ...domain.TemplateDefinition) (*Registry, error) {
	r := &Registry{byID: make(map[string]*domain.TemplateDefinition, len(defs))}
	for i := range defs {
		def := defs[i]
		if err := checkDefinition(&def); err != nil {
			return nil, err
		}
		if _, dup := r.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate template id %q", ErrInvalidCatalog, def.ID)
		}
		def.Fields = append([]domain.FieldSpec(nil), def.Fields...)
		r.byID[def.ID] = &def
		r.order = append(r.order, def.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get returns the definition for id or ErrTemplateNotFound.
func (r *Registry) Get(id string) (*domain.TemplateDefinition, error) {
	def, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return def, nil
}

// List returns all definitions ordered by id.
func (r *Registry) List() []*domain.TemplateDefinition {
	out := make([]*domain.TemplateDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\||\}\})`)

// checkDefinition enforces that field names are unique, typed, and actually
// interpolated by the body.
func checkDefinition(def *domain.TemplateDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: template without id", ErrInvalidCatalog)
	}
	used := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(def.Body, -1) {
		used[m[1]] = true
	}
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s: field without name", ErrInvalidCatalog, def.ID)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidCatalog, def.ID, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return fmt.Errorf("%w: %s: field %q has unknown type %q", ErrInvalidCatalog, def.ID, f.Name, f.Type)
		}
		if !used[f.Name] {
			return fmt.Errorf("%w: %s: field %q is not used by the body", ErrInvalidCatalog, def.ID, f.Name)
		}
	}
	return nil
}
