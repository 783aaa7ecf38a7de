package domain

import "time"

// SendStatus is the per-recipient delivery status recorded on a subscriber.
type SendStatus string

const (
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
)

// SubscriberHistoryEntry is one append-only record of a dispatch attempt
// against a subscriber.
type SubscriberHistoryEntry struct {
	TemplateID   string     `json:"template_id" db:"template_id"`
	TemplateName string     `json:"template_name" db:"template_name"`
	Subject      string     `json:"subject" db:"subject"`
	SentAt       time.Time  `json:"sent_at" db:"sent_at"`
	Status       SendStatus `json:"status" db:"status"`
}

// SendTracking is the upsert applied to a subscriber after an attempt.
// IncrementCount is true only when the attempt succeeded.
type SendTracking struct {
	LastEmailSentAt time.Time              `json:"last_email_sent_at"`
	Status          SendStatus             `json:"email_send_status"`
	IncrementCount  bool                   `json:"increment_count"`
	History         SubscriberHistoryEntry `json:"history"`
}

// SubscriberProfile is the tracking rollup for one email address.
type SubscriberProfile struct {
	ID              string                   `json:"id" db:"id"`
	Email           string                   `json:"email" db:"email"`
	LastEmailSentAt *time.Time               `json:"last_email_sent_at" db:"last_email_sent_at"`
	EmailSendStatus SendStatus               `json:"email_send_status" db:"email_send_status"`
	EmailSendCount  int                      `json:"email_send_count" db:"email_send_count"`
	History         []SubscriberHistoryEntry `json:"history"`
}
