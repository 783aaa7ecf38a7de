package domain

import "time"

// OutcomeStatus distinguishes attempted sends from recipients skipped because
// the dispatch was cancelled.
type OutcomeStatus string

const (
	OutcomeSent         OutcomeStatus = "sent"
	OutcomeFailed       OutcomeStatus = "failed"
	OutcomeNotAttempted OutcomeStatus = "not_attempted"
)

// SendOutcome is the immutable result of attempting delivery to one recipient.
type SendOutcome struct {
	Address      string        `json:"address"`
	Success      bool          `json:"success"`
	Status       OutcomeStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
}

// Attempted reports whether a transport call was made for this recipient.
func (o SendOutcome) Attempted() bool {
	return o.Status != OutcomeNotAttempted
}

// CampaignSummary is returned to the caller once per dispatch call.
// TotalRecipients is the requested count before deduplication.
type CampaignSummary struct {
	DispatchID      string        `json:"dispatch_id"`
	TemplateID      string        `json:"template_id"`
	Subject         string        `json:"subject"`
	RenderedContent string        `json:"rendered_content"`
	TotalRecipients int           `json:"total_recipients"`
	DuplicateCount  int           `json:"duplicate_count"`
	AttemptedCount  int           `json:"attempted_count"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	NotAttempted    int           `json:"not_attempted_count"`
	Outcomes        []SendOutcome `json:"outcomes"`
}

// OutcomeEvent is published for every recorded outcome so downstream
// consumers can follow a dispatch without polling the subscriber store.
type OutcomeEvent struct {
	DispatchID   string        `json:"dispatch_id"`
	TemplateID   string        `json:"template_id"`
	Email        string        `json:"email"`
	Status       OutcomeStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
	SentAt       time.Time     `json:"sent_at"`
}
