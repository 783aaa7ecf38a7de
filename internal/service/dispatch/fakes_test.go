package dispatch_test

import (
	"context"
	"errors"
	"sync"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/templates"
)

// memStore is an in-memory subscriber store for unit testing.
type memStore struct {
	mu        sync.Mutex
	byID      map[string]string // id -> email
	order     []string          // lookup return order
	records   []recordCall
	failEmail map[string]bool
	lookups   int
}

type recordCall struct {
	Email    string
	Tracking domain.SendTracking
}

func newMemStore(pairs ...string) *memStore {
	m := &memStore{byID: map[string]string{}, failEmail: map[string]bool{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.byID[pairs[i]] = pairs[i+1]
		m.order = append(m.order, pairs[i])
	}
	return m
}

func (m *memStore) LookupByIDs(_ context.Context, ids []string) ([]domain.SubscriberRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.SubscriberRef
	for _, id := range m.order {
		if want[id] {
			out = append(out, domain.SubscriberRef{ID: id, Email: m.byID[id]})
		}
	}
	return out, nil
}

func (m *memStore) RecordSend(_ context.Context, email string, t domain.SendTracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recordCall{Email: email, Tracking: t})
	if m.failEmail[email] {
		return errors.New("store unavailable")
	}
	return nil
}

func (m *memStore) calls() []recordCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordCall(nil), m.records...)
}

// captureSender records every message and fails for configured addresses.
type captureSender struct {
	mu     sync.Mutex
	sent   []*domain.EmailMessage
	failOn map[string]string
	hook   func(msg *domain.EmailMessage)
}

func newCaptureSender() *captureSender {
	return &captureSender{failOn: map[string]string{}}
}

func (c *captureSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	reason, fail := c.failOn[msg.Email]
	hook := c.hook
	c.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	if fail {
		return nil, errors.New(reason)
	}
	return &domain.SendResult{Success: true, MessageID: "msg-" + msg.Email, ESPType: domain.ESPLog}, nil
}

func (c *captureSender) addresses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Email
	}
	return out
}

type fakeCounter struct {
	sent, failed int
	calls        int
}

func (f *fakeCounter) RecordDispatch(_ context.Context, sent, failed int) error {
	f.calls++
	f.sent += sent
	f.failed += failed
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.OutcomeEvent
}

func (f *fakeEvents) PublishOutcome(_ context.Context, ev domain.OutcomeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func discountTemplate() domain.TemplateDefinition {
	return domain.TemplateDefinition{
		ID:             "discount-offer",
		Name:           "Discount Offer",
		Category:       "promotion",
		DefaultSubject: "A deal for you",
		Fields: []domain.FieldSpec{
			{Name: "discountPercentage", Label: "Discount Percentage", Type: domain.FieldNumber, Required: true, DefaultValue: "20"},
			{Name: "ctaUrl", Label: "CTA URL", Type: domain.FieldURL, Required: true, DefaultValue: "https://example.com/pricing"},
		},
		Body: `<html><body><p>{{ discountPercentage }}% off</p><a href="{{ ctaUrl }}">Shop</a></body></html>`,
	}
}

func testRegistry() *templates.Registry {
	reg, err := templates.NewRegistry(discountTemplate())
	if err != nil {
		panic(err)
	}
	return reg
}

func validValues() domain.FieldValues {
	return domain.FieldValues{"discountPercentage": "15", "ctaUrl": "https://example.com/promo"}
}
