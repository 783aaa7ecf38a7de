package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/distlock"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
	"github.com/ignite/promo-dispatch/internal/templates"
)

// SendRequest is the caller's dispatch request.
type SendRequest struct {
	TemplateID string                    `json:"template_id"`
	Subject    string                    `json:"subject"`
	Values     domain.FieldValues        `json:"field_values"`
	Selection  domain.RecipientSelection `json:"recipients"`
}

// Deps are the collaborators of a Service. Events, Counter and Locks are
// optional.
type Deps struct {
	Templates  TemplateSource
	Renderer   ContentRenderer
	Store      SubscriberStore
	Dispatcher *Dispatcher
	Events     OutcomePublisher
	Counter    CampaignCounter
	Locks      distlock.Locker
}

// ServiceConfig holds request limits. MaxRecipients <= 0 disables the cap.
type ServiceConfig struct {
	MaxRecipients int
}

// Service runs the send workflow. It is safe for concurrent use if its
// collaborators are.
type Service struct {
	deps    Deps
	tracker *Tracker
	cfg     ServiceConfig
	now     func() time.Time
}

// NewService wires a Service from its collaborators.
func NewService(deps Deps, cfg ServiceConfig) *Service {
	return &Service{
		deps:    deps,
		tracker: NewTracker(deps.Store, deps.Events),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Preview renders values without validating them and reports whether any
// required field is still empty.
func (s *Service) Preview(templateID string, values domain.FieldValues) (html string, missingRequired bool, err error) {
	def, err := s.deps.Templates.Get(templateID)
	if err != nil {
		return "", false, err
	}
	html, err = s.deps.Renderer.Render(def, values)
	if err != nil {
		return "", false, fmt.Errorf("render %s: %w", def.ID, err)
	}
	return html, templates.HasMissingRequired(def, values), nil
}

// Validate returns the field errors for values. An empty map means valid.
func (s *Service) Validate(templateID string, values domain.FieldValues) (domain.FieldErrors, error) {
	def, err := s.deps.Templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	return templates.Validate(def, values), nil
}

// Send validates, renders, resolves and dispatches req. Any error is
// returned before the first transport call; once dispatch starts the caller
// always gets a complete summary, even if every recipient failed.
func (s *Service) Send(ctx context.Context, req SendRequest) (*domain.CampaignSummary, error) {
	def, err := s.deps.Templates.Get(req.TemplateID)
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, ErrSubjectRequired
	}

	if fieldErrs := templates.Validate(def, req.Values); len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	html, err := s.deps.Renderer.Render(def, req.Values)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", def.ID, err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyContent
	}

	res, err := Resolve(ctx, req.Selection, s.deps.Store)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxRecipients > 0 && len(res.Recipients) > s.cfg.MaxRecipients {
		return nil, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyRecipients, len(res.Recipients), s.cfg.MaxRecipients)
	}

	release, err := s.acquire(ctx, Fingerprint(def.ID, subject, res.Recipients))
	if err != nil {
		return nil, err
	}
	defer release()

	dispatchID := uuid.NewString()
	logger.Info("dispatch started",
		"dispatch_id", dispatchID, "template_id", def.ID, "recipients", len(res.Recipients))

	outcomes := s.deps.Dispatcher.Dispatch(ctx, Batch{
		DispatchID: dispatchID,
		TemplateID: def.ID,
		Recipients: res.Recipients,
		Subject:    subject,
		HTML:       html,
		OnOutcome: func(ctx context.Context, o domain.SendOutcome) {
			s.tracker.RecordOutcome(ctx, TrackInput{
				DispatchID:   dispatchID,
				Address:      o.Address,
				TemplateID:   def.ID,
				TemplateName: def.Name,
				Subject:      subject,
				Outcome:      o,
				At:           s.now().UTC(),
			})
		},
	})

	summary := Aggregate(res, outcomes)
	summary.DispatchID = dispatchID
	summary.TemplateID = def.ID
	summary.Subject = subject
	summary.RenderedContent = html

	if s.deps.Counter != nil {
		if err := s.deps.Counter.RecordDispatch(context.WithoutCancel(ctx), summary.SuccessCount, summary.FailureCount); err != nil {
			logger.Warn("campaign counter update failed", "dispatch_id", dispatchID, "error", err.Error())
		}
	}

	logger.Info("dispatch finished",
		"dispatch_id", dispatchID,
		"template_id", def.ID,
		"sent", summary.SuccessCount,
		"failed", summary.FailureCount,
		"not_attempted", summary.NotAttempted)

	return &summary, nil
}

// acquire takes the duplicate-dispatch lock. A lock backend outage is
// logged and the dispatch proceeds unguarded.
func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	if s.deps.Locks == nil {
		return func() {}, nil
	}
	lock := s.deps.Locks.NewLock("dispatch:" + key)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		logger.Warn("dispatch lock unavailable", "key", key, "error", err.Error())
		return func() {}, nil
	}
	if !ok {
		return nil, ErrDispatchInProgress
	}
	stopRenew := func() {}
	if r, ok := lock.(distlock.Renewer); ok {
		stopRenew = r.KeepAlive(func(err error) {
			logger.Warn("dispatch lock lost", "key", key, "error", err.Error())
		})
	}
	return func() {
		stopRenew()
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("dispatch lock release failed", "key", key, "error", err.Error())
		}
	}, nil
}

// Fingerprint identifies a dispatch by template, subject and recipient set,
// independent of recipient order and case.
func Fingerprint(templateID, subject string, recipients []string) string {
	addrs := make([]string, len(recipients))
	for i, r := range recipients {
		addrs[i] = strings.ToLower(r)
	}
	sort.Strings(addrs)

	h := sha256.New()
	h.Write([]byte(templateID))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	for _, a := range addrs {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	return hex.EncodeToString(h.Sum(nil))
}
