package esp

import "errors"

var (
	ErrNotConfigured   = errors.New("esp: transport not configured")
	ErrUnknownProvider = errors.New("esp: unknown provider")
)
