package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/promo-dispatch/internal/domain"
)

// Sentinel errors for the dispatch service layer.
var (
	ErrEmptyRecipients    = errors.New("recipient list is empty")
	ErrNoIDsProvided      = fmt.Errorf("%w: no subscriber ids provided", ErrEmptyRecipients)
	ErrNoListProvided     = fmt.Errorf("%w: no recipient list provided", ErrEmptyRecipients)
	ErrInvalidSelection   = errors.New("unrecognized recipient selection mode")
	ErrSubjectRequired    = errors.New("subject is required")
	ErrEmptyContent       = errors.New("rendered content is empty")
	ErrTooManyRecipients  = errors.New("too many recipients")
	ErrInvalidFields      = errors.New("field validation failed")
	ErrDispatchInProgress = errors.New("an identical dispatch is already in progress")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// ValidationError carries the per-field messages from template validation.
// It matches ErrInvalidFields under errors.Is.
type ValidationError struct {
	Fields domain.FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", ErrInvalidFields, strings.Join(names, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFields
}

// IsInputError reports whether err was caused by the request itself rather
// than by a collaborator. Input errors are always returned before any
// transport call is made.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrEmptyRecipients,
		ErrInvalidSelection,
		ErrSubjectRequired,
		ErrEmptyContent,
		ErrTooManyRecipients,
		ErrInvalidFields,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
