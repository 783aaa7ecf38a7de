// Package memory is an in-process subscriber store for dev mode and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
)

// Store implements dispatch.SubscriberStore and dispatch.SubscriberDirectory.
// Subscribers are keyed by lower-cased email.
type Store struct {
	mu      sync.RWMutex
	byEmail map[string]*domain.SubscriberProfile
	byID    map[string]*domain.SubscriberProfile
	order   []string // ids in creation order
}

// NewStore returns an empty store seeded with the given addresses.
func NewStore(seed ...string) *Store {
	s := &Store{
		byEmail: make(map[string]*domain.SubscriberProfile),
		byID:    make(map[string]*domain.SubscriberProfile),
	}
	for _, email := range seed {
		s.AddSubscriber(context.Background(), email)
	}
	return s
}

func (s *Store) insertLocked(id, email string) *domain.SubscriberProfile {
	p := &domain.SubscriberProfile{ID: id, Email: email, History: []domain.SubscriberHistoryEntry{}}
	s.byEmail[strings.ToLower(email)] = p
	s.byID[id] = p
	s.order = append(s.order, id)
	return p
}

// AddSubscriber registers email, returning the existing entry if present.
func (s *Store) AddSubscriber(_ context.Context, email string) (*domain.SubscriberRef, error) {
	email = strings.TrimSpace(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		p = s.insertLocked(uuid.New().String(), email)
	}
	return &domain.SubscriberRef{ID: p.ID, Email: p.Email}, nil
}

// LookupByIDs returns subscribers in creation order. Unknown ids are skipped.
func (s *Store) LookupByIDs(_ context.Context, ids []string) ([]domain.SubscriberRef, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SubscriberRef
	for _, id := range s.order {
		if want[id] {
			p := s.byID[id]
			out = append(out, domain.SubscriberRef{ID: p.ID, Email: p.Email})
		}
	}
	return out, nil
}

// RecordSend applies t under the store lock.
func (s *Store) RecordSend(_ context.Context, email string, t domain.SendTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		p = s.insertLocked(uuid.New().String(), email)
	}
	at := t.LastEmailSentAt
	p.LastEmailSentAt = &at
	p.EmailSendStatus = t.Status
	if t.IncrementCount {
		p.EmailSendCount++
	}
	p.History = append(p.History, t.History)
	return nil
}

// ListSubscribers pages through subscribers in creation order.
func (s *Store) ListSubscribers(_ context.Context, limit, offset int) ([]domain.SubscriberRef, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.order)
	out := []domain.SubscriberRef{}
	if offset >= total {
		return out, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	for _, id := range s.order[offset:end] {
		p := s.byID[id]
		out = append(out, domain.SubscriberRef{ID: p.ID, Email: p.Email})
	}
	return out, total, nil
}

// Profile returns a copy of the subscriber's rollup and history.
func (s *Store) Profile(_ context.Context, email string) (*domain.SubscriberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, dispatch.ErrSubscriberNotFound
	}
	cp := *p
	cp.History = append([]domain.SubscriberHistoryEntry{}, p.History...)
	if p.LastEmailSentAt != nil {
		at := *p.LastEmailSentAt
		cp.LastEmailSentAt = &at
	}
	return &cp, nil
}
