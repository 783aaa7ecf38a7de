package api

import (
	"errors"
	"net/http"

	"github.com/ignite/promo-dispatch/internal/archive"
	"github.com/ignite/promo-dispatch/internal/pkg/httputil"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
	"github.com/ignite/promo-dispatch/internal/templates"
)

// writeError maps service errors onto HTTP responses. Anything unrecognised
// is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var verr *dispatch.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_fields", dispatch.ErrInvalidFields.Error(), verr.Fields)
	case errors.Is(err, templates.ErrTemplateNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, "template_not_found", err.Error(), nil)
	case errors.Is(err, dispatch.ErrDispatchInProgress):
		httputil.ErrorWithCode(w, http.StatusConflict, "dispatch_in_progress", err.Error(), nil)
	case errors.Is(err, dispatch.ErrSubscriberNotFound), errors.Is(err, archive.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, archive.ErrInvalidID):
		httputil.BadRequest(w, err.Error())
	case dispatch.IsInputError(err):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
