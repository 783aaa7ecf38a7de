package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/promo-dispatch/internal/archive"
	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/httputil"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
	"github.com/ignite/promo-dispatch/internal/stats"
)

// TemplateCatalog lists and resolves template definitions.
type TemplateCatalog interface {
	List() []*domain.TemplateDefinition
	Get(id string) (*domain.TemplateDefinition, error)
}

// TotalsReader reads the campaign counters.
type TotalsReader interface {
	Totals(ctx context.Context) (stats.Totals, error)
}

// HandlerDeps wires Handlers. Totals and Archive may be nil.
type HandlerDeps struct {
	Templates   TemplateCatalog
	Service     *dispatch.Service
	Subscribers dispatch.SubscriberDirectory
	Totals      TotalsReader
	Archive     archive.Archiver
}

// Handlers contains all HTTP handlers
type Handlers struct {
	templates   TemplateCatalog
	svc         *dispatch.Service
	subscribers dispatch.SubscriberDirectory
	totals      TotalsReader
	archive     archive.Archiver
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{
		templates:   deps.Templates,
		svc:         deps.Service,
		subscribers: deps.Subscribers,
		totals:      deps.Totals,
		archive:     deps.Archive,
	}
}

const (
	defaultSubscriberPage = 50
	maxSubscriberPage     = 500
)

type previewRequest struct {
	TemplateID string             `json:"template_id" validate:"required"`
	Values     domain.FieldValues `json:"field_values"`
}

type recipientsBody struct {
	Mode    domain.SelectionMode `json:"mode" validate:"required,oneof=selected custom"`
	IDs     []string             `json:"ids"`
	RawList string               `json:"raw_list"`
}

type sendRequest struct {
	TemplateID string             `json:"template_id" validate:"required"`
	Subject    string             `json:"subject"`
	Values     domain.FieldValues `json:"field_values"`
	Recipients recipientsBody     `json:"recipients"`
}

type addSubscriberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ListTemplates handles GET /api/templates
func (h *Handlers) ListTemplates(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]any{"templates": h.templates.List()})
}

// GetTemplate handles GET /api/templates/{id}
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	def, err := h.templates.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, def)
}

// Preview handles POST /api/promotions/preview. Values are rendered as-is;
// missing_required tells the caller whether a send would be rejected.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	html, missing, err := h.svc.Preview(req.TemplateID, req.Values)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"html":             html,
		"missing_required": missing,
	})
}

// Validate handles POST /api/promotions/validate
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	fieldErrs, err := h.svc.Validate(req.TemplateID, req.Values)
	if err != nil {
		writeError(w, err)
		return
	}
	if fieldErrs == nil {
		fieldErrs = domain.FieldErrors{}
	}
	httputil.OK(w, map[string]any{
		"valid":  len(fieldErrs) == 0,
		"errors": fieldErrs,
	})
}

// Send handles POST /api/promotions/send. The response is the campaign
// summary; per-recipient failures do not change the status code.
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	summary, err := h.svc.Send(r.Context(), dispatch.SendRequest{
		TemplateID: req.TemplateID,
		Subject:    req.Subject,
		Values:     req.Values,
		Selection: domain.RecipientSelection{
			Mode:    req.Recipients.Mode,
			IDs:     req.Recipients.IDs,
			RawList: req.Recipients.RawList,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.archive != nil {
		if err := h.archive.Save(context.WithoutCancel(r.Context()), summary); err != nil {
			logger.Warn("dispatch archive failed", "dispatch_id", summary.DispatchID, "error", err.Error())
		}
	}

	httputil.OK(w, summary)
}

// ListSubscribers handles GET /api/subscribers?page=&limit=
func (h *Handlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, defaultSubscriberPage, maxSubscriberPage)
	subs, total, err := h.subscribers.ListSubscribers(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if subs == nil {
		subs = []domain.SubscriberRef{}
	}
	httputil.OK(w, NewPaginatedResponse(subs, p, total))
}

// AddSubscriber handles POST /api/subscribers
func (h *Handlers) AddSubscriber(w http.ResponseWriter, r *http.Request) {
	var req addSubscriberRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ref, err := h.subscribers.AddSubscriber(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, ref)
}

// GetSubscriber handles GET /api/subscribers/{email}
func (h *Handlers) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		httputil.BadRequest(w, "invalid email in path")
		return
	}
	profile, err := h.subscribers.Profile(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, profile)
}

// GetDispatch handles GET /api/dispatches/{id}
func (h *Handlers) GetDispatch(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httputil.NotFound(w, "dispatch archive is not enabled")
		return
	}
	summary, err := h.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// GetStats handles GET /api/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	var t stats.Totals
	if h.totals != nil {
		var err error
		if t, err = h.totals.Totals(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	httputil.OK(w, map[string]int64{
		"emails_sent":      t.Sent,
		"emails_failed":    t.Failed,
		"emails_attempted": t.Attempted(),
	})
}
