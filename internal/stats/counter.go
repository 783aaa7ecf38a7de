// Package stats keeps the campaign-wide email counters.
//
// The durable total counts successful sends only; failures are kept as a
// separate total so attempts can be derived. Both are mirrored to
// Prometheus.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Counter names.
const (
	EmailsSent   = "emails_sent_total"
	EmailsFailed = "emails_failed_total"
)

// Store is a named int64 counter backend.
type Store interface {
	IncrBy(ctx context.Context, name string, delta int64) (int64, error)
	Get(ctx context.Context, name string) (int64, error)
}

// RedisStore keeps counters under the promo: key prefix.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Key returns the Redis key for a counter name.
func Key(name string) string { return "promo:" + name }

func (s *RedisStore) IncrBy(ctx context.Context, name string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, Key(name), delta).Result()
}

func (s *RedisStore) Get(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Get(ctx, Key(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Totals is a snapshot of the campaign-wide counters.
type Totals struct {
	Sent   int64 `json:"emails_sent_total"`
	Failed int64 `json:"emails_failed_total"`
}

// Attempted is Sent plus Failed.
func (t Totals) Attempted() int64 { return t.Sent + t.Failed }

// Counter implements dispatch.CampaignCounter.
type Counter struct {
	store Store
}

// NewCounter creates a Counter persisting to store.
func NewCounter(store Store) *Counter {
	return &Counter{store: store}
}

// RecordDispatch adds one dispatch's results to the running totals.
func (c *Counter) RecordDispatch(ctx context.Context, sent, failed int) error {
	dispatchesTotal.Inc()
	emailsTotal.WithLabelValues("sent").Add(float64(sent))
	emailsTotal.WithLabelValues("failed").Add(float64(failed))

	var errs []error
	if sent > 0 {
		if _, err := c.store.IncrBy(ctx, EmailsSent, int64(sent)); err != nil {
			errs = append(errs, fmt.Errorf("incr %s: %w", EmailsSent, err))
		}
	}
	if failed > 0 {
		if _, err := c.store.IncrBy(ctx, EmailsFailed, int64(failed)); err != nil {
			errs = append(errs, fmt.Errorf("incr %s: %w", EmailsFailed, err))
		}
	}
	return errors.Join(errs...)
}

// Totals reads the current counters.
func (c *Counter) Totals(ctx context.Context) (Totals, error) {
	sent, err := c.store.Get(ctx, EmailsSent)
	if err != nil {
		return Totals{}, err
	}
	failed, err := c.store.Get(ctx, EmailsFailed)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Sent: sent, Failed: failed}, nil
}
