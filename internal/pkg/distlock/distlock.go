// Package distlock guards a dispatch against being started twice for the
// same fingerprint, across processes.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// A single lock value is owned by one caller; create a new one per Acquire.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Renewer is implemented by locks whose hold expires on its own and must be
// refreshed for the duration of a long dispatch.
type Renewer interface {
	KeepAlive(onLost func(error)) (stop func())
}

// Locker hands out locks by key.
type Locker interface {
	NewLock(key string) DistLock
}

// Provider picks the best available backend for each lock it creates.
// Redis is preferred, Postgres advisory locks are the fallback, and with
// neither configured an in-process lock table is used.
type Provider struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
	local *localTable
}

// NewProvider builds a Provider. Both backends may be nil.
func NewProvider(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Provider {
	return &Provider{redis: redisClient, db: db, ttl: ttl, local: &localTable{held: map[string]bool{}}}
}

// NewLock returns a lock for key on the selected backend.
func (p *Provider) NewLock(key string) DistLock {
	switch {
	case p.redis != nil:
		return NewRedisLock(p.redis, key, p.ttl)
	case p.db != nil:
		return NewPGAdvisoryLock(p.db, key)
	default:
		return &localLock{table: p.local, key: key}
	}
}

// PGAdvisoryLock implements DistLock with pg_try_advisory_lock. The lock is
// session scoped, so it goes away if the connection drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives a deterministic lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: AdvisoryID(key)}
}

// AdvisoryID hashes key into the int64 space used by advisory locks.
func AdvisoryID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire pins a connection so the unlock runs on the same session.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the pinned connection.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}

type localTable struct {
	mu   sync.Mutex
	held map[string]bool
}

type localLock struct {
	table *localTable
	key   string
	owned bool
}

func (l *localLock) Acquire(context.Context) (bool, error) {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if l.table.held[l.key] {
		return false, nil
	}
	l.table.held[l.key] = true
	l.owned = true
	return true, nil
}

func (l *localLock) Release(context.Context) error {
	if !l.owned {
		return nil
	}
	l.table.mu.Lock()
	delete(l.table.held, l.key)
	l.table.mu.Unlock()
	l.owned = false
	return nil
}
