package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
)

// SubscriberRepo implements dispatch.SubscriberStore and
// dispatch.SubscriberDirectory against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

// LookupByIDs returns subscribers in creation order. Unknown ids are skipped.
func (r *SubscriberRepo) LookupByIDs(ctx context.Context, ids []string) ([]domain.SubscriberRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email
		FROM promo_subscribers
		WHERE id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.SubscriberRef
	for rows.Next() {
		var ref domain.SubscriberRef
		if err := rows.Scan(&ref.ID, &ref.Email); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// RecordSend upserts the tracking columns by email and appends one history
// row in a single transaction. Unknown addresses (custom lists) get a new
// subscriber row.
func (r *SubscriberRepo) RecordSend(ctx context.Context, email string, t domain.SendTracking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	increment := 0
	if t.IncrementCount {
		increment = 1
	}

	var subscriberID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO promo_subscribers (id, email, last_email_sent_at, email_send_status, email_send_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT ((lower(email))) DO UPDATE SET
			last_email_sent_at = EXCLUDED.last_email_sent_at,
			email_send_status  = EXCLUDED.email_send_status,
			email_send_count   = promo_subscribers.email_send_count + EXCLUDED.email_send_count,
			updated_at         = NOW()
		RETURNING id
	`, uuid.New().String(), email, t.LastEmailSentAt, string(t.Status), increment).Scan(&subscriberID)
	if err != nil {
		return fmt.Errorf("upsert tracking: %w", err)
	}

	h := t.History
	_, err = tx.ExecContext(ctx, `
		INSERT INTO promo_subscriber_history (id, subscriber_id, template_id, template_name, subject, sent_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New().String(), subscriberID, h.TemplateID, h.TemplateName, h.Subject, h.SentAt, string(h.Status))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AddSubscriber registers email, returning the existing row if present.
func (r *SubscriberRepo) AddSubscriber(ctx context.Context, email string) (*domain.SubscriberRef, error) {
	email = strings.TrimSpace(email)
	ref := domain.SubscriberRef{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO promo_subscribers (id, email, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT ((lower(email))) DO UPDATE SET updated_at = promo_subscribers.updated_at
		RETURNING id, email
	`, uuid.New().String(), email).Scan(&ref.ID, &ref.Email)
	if err != nil {
		return nil, fmt.Errorf("add subscriber: %w", err)
	}
	return &ref, nil
}

// ListSubscribers pages through subscribers in creation order.
func (r *SubscriberRepo) ListSubscribers(ctx context.Context, limit, offset int) ([]domain.SubscriberRef, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM promo_subscribers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}
	if limit <= 0 {
		limit = total
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email
		FROM promo_subscribers
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	out := []domain.SubscriberRef{}
	for rows.Next() {
		var ref domain.SubscriberRef
		if err := rows.Scan(&ref.ID, &ref.Email); err != nil {
			return nil, 0, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, ref)
	}
	return out, total, rows.Err()
}

// Profile returns the tracking rollup and full history for email.
func (r *SubscriberRepo) Profile(ctx context.Context, email string) (*domain.SubscriberProfile, error) {
	var (
		p      domain.SubscriberProfile
		last   sql.NullTime
		status sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, last_email_sent_at, email_send_status, email_send_count
		FROM promo_subscribers
		WHERE lower(email) = lower($1)
	`, strings.TrimSpace(email)).Scan(&p.ID, &p.Email, &last, &status, &p.EmailSendCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dispatch.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	if last.Valid {
		p.LastEmailSentAt = &last.Time
	}
	p.EmailSendStatus = domain.SendStatus(status.String)

	rows, err := r.db.QueryContext(ctx, `
		SELECT template_id, template_name, subject, sent_at, status
		FROM promo_subscriber_history
		WHERE subscriber_id = $1
		ORDER BY sent_at, id
	`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	p.History = []domain.SubscriberHistoryEntry{}
	for rows.Next() {
		var h domain.SubscriberHistoryEntry
		var st string
		if err := rows.Scan(&h.TemplateID, &h.TemplateName, &h.Subject, &h.SentAt, &st); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Status = domain.SendStatus(st)
		p.History = append(p.History, h)
	}
	return &p, rows.Err()
}
