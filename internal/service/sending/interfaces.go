// Package sending defines the transport contract the dispatcher delivers
// through.
//
// Each ESP adapter in internal/esp (SES, SparkPost, Resend, and the logging
// dry-run sender) implements Sender.
package sending

import (
	"context"

	"github.com/ignite/promo-dispatch/internal/domain"
)

// Sender sends a single email through an ESP. Implementations must be
// safe for concurrent use.
//
// A send failed if err is non-nil or the result reports !Success. Retries,
// if any, happen inside the implementation.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	return f(ctx, msg)
}

// Named is implemented by senders that can report which ESP they front.
type Named interface {
	ESP() domain.ESPType
}
