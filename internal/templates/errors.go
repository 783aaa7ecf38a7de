package templates

import "errors"

// Sentinel errors for the template registry.
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidCatalog   = errors.New("invalid template catalog")
)
