package esp

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
)

type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	emails resendEmails
}

// NewResendSender creates a ResendSender with the given API key.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{emails: resend.NewClient(apiKey).Emails}
}

// ESP identifies the provider.
func (s *ResendSender) ESP() domain.ESPType { return domain.ESPResend }

// Send sends a single email via Resend.
func (s *ResendSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	params := &resend.SendEmailRequest{
		From:    (&mail.Address{Name: msg.FromName, Address: msg.FromEmail}).String(),
		To:      []string{msg.Email},
		Subject: msg.Subject,
		Html:    msg.HTMLContent,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := s.emails.SendWithContext(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resend send: %w", ctxErr)
		}
		logger.Warn("resend send failed", "recipient", msg.Email, "error", err.Error())
		return &domain.SendResult{
			Success: false,
			ESPType: domain.ESPResend,
			Error:   fmt.Sprintf("resend send failed: %v", err),
		}, nil
	}

	logger.Debug("resend sent", "recipient", msg.Email, "message_id", sent.Id)
	return &domain.SendResult{
		Success:   true,
		MessageID: sent.Id,
		ESPType:   domain.ESPResend,
		SentAt:    time.Now(),
	}, nil
}
