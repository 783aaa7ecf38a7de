package domain

import "time"

// ESPType identifies the email service provider used for sending.
type ESPType string

const (
	ESPSES       ESPType = "ses"
	ESPSparkPost ESPType = "sparkpost"
	ESPResend    ESPType = "resend"
	ESPLog       ESPType = "log"
)

// EmailMessage is the fully-rendered, single-recipient message handed to a
// transport.
type EmailMessage struct {
	ID          string            `json:"id"`
	DispatchID  string            `json:"dispatch_id"`
	TemplateID  string            `json:"template_id"`
	Email       string            `json:"email"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// SendResult is returned by a transport after attempting delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	ESPType   ESPType   `json:"esp_type"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}
