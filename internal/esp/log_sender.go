package esp

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
)

// LogSender is the dry-run transport. It logs each message instead of
// delivering it and rejects addresses that do not parse, the way a real
// provider would.
type LogSender struct{}

// ESP identifies the provider.
func (LogSender) ESP() domain.ESPType { return domain.ESPLog }

// Send logs msg and reports success for any syntactically valid address.
func (LogSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		return &domain.SendResult{
			Success: false,
			ESPType: domain.ESPLog,
			Error:   fmt.Sprintf("invalid recipient address: %v", err),
		}, nil
	}

	id := uuid.NewString()
	logger.Info("dry-run send",
		"recipient", msg.Email,
		"subject", msg.Subject,
		"dispatch_id", msg.DispatchID,
		"message_id", id,
		"bytes", len(msg.HTMLContent))

	return &domain.SendResult{Success: true, MessageID: id, ESPType: domain.ESPLog, SentAt: time.Now()}, nil
}
