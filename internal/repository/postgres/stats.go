package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// StatsRepo keeps campaign-wide counters in Postgres. It backs the counter
// when Redis is not configured.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed counter store.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// IncrBy adds delta to the named counter and returns the new value.
func (r *StatsRepo) IncrBy(ctx context.Context, name string, delta int64) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO promo_campaign_stats (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			value = promo_campaign_stats.value + EXCLUDED.value,
			updated_at = NOW()
		RETURNING value
	`, name, delta).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", name, err)
	}
	return v, nil
}

// Get returns the named counter, zero if it was never written.
func (r *StatsRepo) Get(ctx context.Context, name string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM promo_campaign_stats WHERE name = $1`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", name, err)
	}
	return v, nil
}
