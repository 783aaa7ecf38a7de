package templates

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/osteele/liquid"
)

// URLFallback replaces any url field value that is not a safe http(s) URL.
const URLFallback = "#"

// Renderer substitutes field values into template bodies using Liquid.
// Parsed bodies are cached per template id; definitions are immutable so the
// cache never needs invalidation.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // template id -> *liquid.Template
}

// NewRenderer creates a renderer with a bare Liquid engine.
func NewRenderer() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Render produces the HTML for def with values. It does not validate: url
// fields are sanitized here as well, so a preview of unvalidated input is
// still safe. Output depends only on def and values.
func (r *Renderer) Render(def *domain.TemplateDefinition, values domain.FieldValues) (string, error) {
	tpl, err := r.parsed(def)
	if err != nil {
		return "", err
	}
	out, serr := tpl.RenderString(Bindings(def, values))
	if serr != nil {
		return "", fmt.Errorf("render template %s: %w", def.ID, serr)
	}
	return out, nil
}

func (r *Renderer) parsed(def *domain.TemplateDefinition) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(def.ID); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(def.Body)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", def.ID, err)
	}
	actual, _ := r.cache.LoadOrStore(def.ID, tpl)
	return actual.(*liquid.Template), nil
}

// Bindings resolves the effective, display-ready value of every field.
func Bindings(def *domain.TemplateDefinition, values domain.FieldValues) map[string]any {
	b := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		b[f.Name] = effectiveValue(f, values[f.Name])
	}
	return b
}

func effectiveValue(f domain.FieldSpec, supplied any) string {
	switch f.Type {
	case domain.FieldURL:
		return sanitizeURL(pick(supplied, f.DefaultValue))
	case domain.FieldNumber:
		if n, ok := parseNumber(supplied); ok {
			return formatNumber(n)
		}
		if n, ok := parseNumber(f.DefaultValue); ok {
			return formatNumber(n)
		}
		return "0"
	case domain.FieldTextarea:
		text := pick(supplied, f.DefaultValue)
		if f.Itemized {
			return listItems(text)
		}
		return strings.Join(nonBlankLines(text), "<br>")
	default:
		return html.EscapeString(strings.TrimSpace(pick(supplied, f.DefaultValue)))
	}
}

// pick returns the supplied value when non-blank, otherwise the default.
func pick(supplied any, def string) string {
	if !isBlank(supplied) {
		return rawString(supplied)
	}
	return def
}

func sanitizeURL(s string) string {
	if IsSafeURL(s) {
		return strings.TrimSpace(s)
	}
	return URLFallback
}

// listItems wraps each non-blank line in <li>, joined with no separator.
func listItems(text string) string {
	var sb strings.Builder
	for _, line := range nonBlankLines(text) {
		sb.WriteString("<li>")
		sb.WriteString(line)
		sb.WriteString("</li>")
	}
	return sb.String()
}

// nonBlankLines splits on newlines, trims, drops empties and escapes each line.
func nonBlankLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, html.EscapeString(line))
		}
	}
	return out
}
