package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
)

// TrackInput describes one settled recipient.
type TrackInput struct {
	DispatchID   string
	Address      string
	TemplateID   string
	TemplateName string
	Subject      string
	Outcome      domain.SendOutcome
	At           time.Time
}

// Tracker records outcomes against the subscriber store and, when
// configured, publishes them as events. Both steps are best-effort.
type Tracker struct {
	store  TrackingStore
	events OutcomePublisher
	now    func() time.Time
}

// NewTracker creates a Tracker. events may be nil.
func NewTracker(store TrackingStore, events OutcomePublisher) *Tracker {
	return &Tracker{store: store, events: events, now: time.Now}
}

// BuildTracking derives the store update for one outcome. The send count is
// only incremented for a successful send; status, timestamp and history are
// written either way.
func BuildTracking(in TrackInput) domain.SendTracking {
	status := domain.SendStatusFailed
	if in.Outcome.Success {
		status = domain.SendStatusSent
	}
	return domain.SendTracking{
		LastEmailSentAt: in.At,
		Status:          status,
		IncrementCount:  in.Outcome.Success,
		History: domain.SubscriberHistoryEntry{
			TemplateID:   in.TemplateID,
			TemplateName: in.TemplateName,
			Subject:      in.Subject,
			SentAt:       in.At,
			Status:       status,
		},
	}
}

// RecordOutcome writes the tracking update for in and publishes the outcome
// event. Failures are logged and returned but never change the outcome.
// Recipients that were never attempted are skipped.
func (t *Tracker) RecordOutcome(ctx context.Context, in TrackInput) error {
	if !in.Outcome.Attempted() {
		return nil
	}
	if in.At.IsZero() {
		in.At = t.now().UTC()
	}
	if in.Address == "" {
		in.Address = in.Outcome.Address
	}

	var errs []error
	if err := t.store.RecordSend(ctx, in.Address, BuildTracking(in)); err != nil {
		logger.Warn("tracking update failed",
			"dispatch_id", in.DispatchID, "recipient", in.Address, "error", err.Error())
		errs = append(errs, fmt.Errorf("record send: %w", err))
	}

	if t.events != nil {
		ev := domain.OutcomeEvent{
			DispatchID:   in.DispatchID,
			TemplateID:   in.TemplateID,
			Email:        in.Address,
			Status:       in.Outcome.Status,
			ErrorMessage: in.Outcome.ErrorMessage,
			MessageID:    in.Outcome.MessageID,
			SentAt:       in.At,
		}
		if err := t.events.PublishOutcome(ctx, ev); err != nil {
			logger.Warn("outcome event publish failed",
				"dispatch_id", in.DispatchID, "recipient", in.Address, "error", err.Error())
			errs = append(errs, fmt.Errorf("publish outcome: %w", err))
		}
	}

	return errors.Join(errs...)
}
