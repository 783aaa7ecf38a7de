package esp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/httpretry"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
)

// SparkPostSender sends emails via the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewSparkPostSender creates a sender targeting the SparkPost v1 API.
// client is usually a *httpretry.RetryClient.
func NewSparkPostSender(apiKey, baseURL string, client httpretry.HTTPDoer) *SparkPostSender {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	if client == nil {
		client = httpretry.NewRetryClient(nil, httpretry.Options{})
	}
	return &SparkPostSender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ESP identifies the provider.
func (s *SparkPostSender) ESP() domain.ESPType { return domain.ESPSparkPost }

type transmission struct {
	Recipients []transmissionRecipient `json:"recipients"`
	Content    transmissionContent     `json:"content"`
	Metadata   map[string]string       `json:"metadata,omitempty"`
}

type transmissionRecipient struct {
	Address struct {
		Email string `json:"email"`
	} `json:"address"`
}

type transmissionContent struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	} `json:"from"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type transmissionResponse struct {
	Results struct {
		ID                  string `json:"id"`
		TotalAcceptedRecips int    `json:"total_accepted_recipients"`
		TotalRejectedRecips int    `json:"total_rejected_recipients"`
	} `json:"results"`
	Errors []struct {
		Message     string `json:"message"`
		Description string `json:"description"`
		Code        string `json:"code"`
	} `json:"errors"`
}

// Send delivers a single email through SparkPost.
func (s *SparkPostSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: SparkPost API key not configured", ErrNotConfigured)
	}

	t := transmission{
		Recipients: make([]transmissionRecipient, 1),
		Metadata: map[string]string{
			"dispatch_id": msg.DispatchID,
			"template_id": msg.TemplateID,
		},
	}
	t.Recipients[0].Address.Email = msg.Email
	t.Content.From.Email = msg.FromEmail
	t.Content.From.Name = msg.FromName
	t.Content.Subject = msg.Subject
	t.Content.HTML = msg.HTMLContent
	t.Content.ReplyTo = msg.ReplyTo

	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transmissions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var result transmissionResponse
	json.Unmarshal(body, &result)

	if resp.StatusCode >= 400 {
		reason := strings.TrimSpace(string(body))
		if len(result.Errors) > 0 {
			reason = result.Errors[0].Message
			if result.Errors[0].Description != "" {
				reason += ": " + result.Errors[0].Description
			}
		}
		logger.Warn("sparkpost send failed", "recipient", msg.Email, "status", resp.StatusCode)
		return &domain.SendResult{
			Success: false,
			ESPType: domain.ESPSparkPost,
			Error:   fmt.Sprintf("SparkPost error %d: %s", resp.StatusCode, reason),
		}, nil
	}
	if result.Results.TotalRejectedRecips > 0 && result.Results.TotalAcceptedRecips == 0 {
		return &domain.SendResult{
			Success:   false,
			MessageID: result.Results.ID,
			ESPType:   domain.ESPSparkPost,
			Error:     "SparkPost rejected the recipient",
		}, nil
	}

	logger.Debug("sparkpost sent", "recipient", msg.Email, "message_id", result.Results.ID)

	return &domain.SendResult{
		Success:   true,
		MessageID: result.Results.ID,
		ESPType:   domain.ESPSparkPost,
		SentAt:    time.Now(),
	}, nil
}
