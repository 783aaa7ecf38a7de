package dispatch

import (
	"context"

	"github.com/ignite/promo-dispatch/internal/domain"
)

// SubscriberLookup resolves subscriber ids to addresses. Implementations
// return rows in their own order; unknown ids are skipped, not errors.
type SubscriberLookup interface {
	LookupByIDs(ctx context.Context, ids []string) ([]domain.SubscriberRef, error)
}

// TrackingStore applies one send attempt to a subscriber, keyed by email.
// The status/timestamp upsert, the conditional count increment and the
// history append must land atomically.
type TrackingStore interface {
	RecordSend(ctx context.Context, email string, t domain.SendTracking) error
}

// SubscriberStore is the full store contract consumed by Service.
// Implementations must be safe for concurrent use.
type SubscriberStore interface {
	SubscriberLookup
	TrackingStore
}

// TemplateSource looks templates up by id.
type TemplateSource interface {
	Get(id string) (*domain.TemplateDefinition, error)
}

// ContentRenderer turns a template and its field values into HTML.
type ContentRenderer interface {
	Render(def *domain.TemplateDefinition, values domain.FieldValues) (string, error)
}

// CampaignCounter keeps campaign-wide send totals.
type CampaignCounter interface {
	RecordDispatch(ctx context.Context, sent, failed int) error
}

// OutcomePublisher forwards recorded outcomes to an event stream.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, ev domain.OutcomeEvent) error
}

// SubscriberDirectory is the registration and read side of the store used
// by the HTTP layer. Profile returns ErrSubscriberNotFound for unknown
// addresses.
type SubscriberDirectory interface {
	AddSubscriber(ctx context.Context, email string) (*domain.SubscriberRef, error)
	ListSubscribers(ctx context.Context, limit, offset int) ([]domain.SubscriberRef, int, error)
	Profile(ctx context.Context, email string) (*domain.SubscriberProfile, error)
}
