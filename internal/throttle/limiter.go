package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LoginGuard/internal/domain"
)

// Store is an expiring key-value store. Get reports found=false for missing or
// expired keys. A ttl <= 0 means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Decision is the outcome of CheckLockout.
type Decision struct {
	Allowed          bool
	MinutesRemaining int
	Message          string
}

// Err returns a *domain.LockoutError for a denial and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &domain.LockoutError{MinutesRemaining: d.MinutesRemaining, Message: d.Message}
}

// Limiter counts failed logins per client address and locks the address out
// once the configured threshold is reached.
//
// The failure counter is a plain read-modify-write against the store, so
// concurrent failures from one address may lose increments.
type Limiter struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

func New(store Store, cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:  store,
		cfg:    cfg.WithDefaults(),
		logger: logger,
	}
}

func (l *Limiter) Config() Config { return l.cfg }

func (l *Limiter) CheckLockout(ctx context.Context, clientAddr string, now time.Time) Decision {
	rec := l.load(ctx, Key(clientAddr))
	if !rec.Locked(now) {
		return Decision{Allowed: true}
	}
	minutes := rec.MinutesRemaining(now)
	return Decision{
		Allowed:          false,
		MinutesRemaining: minutes,
		Message:          l.cfg.FormatMessage(minutes),
	}
}

// RecordFailure returns the record as written. A store write error is returned
// alongside the record so the caller can log it.
func (l *Limiter) RecordFailure(ctx context.Context, clientAddr string, now time.Time) (Record, error) {
	key := Key(clientAddr)
	rec := l.load(ctx, key)

	rec.FailureCount++
	if rec.FailureCount >= l.cfg.MaxAttempts {
		rec.LockedUntil = now.Unix() + int64(l.cfg.LockoutMinutes)*60
	}

	raw, err := encodeRecord(rec)
	if err != nil {
		return rec, fmt.Errorf("encode attempt record: %w", err)
	}
	if err := l.store.Set(ctx, key, raw, l.cfg.LockoutDuration()); err != nil {
		return rec, fmt.Errorf("store attempt record: %w", err)
	}
	return rec, nil
}

func (l *Limiter) ClearAttempts(ctx context.Context, clientAddr string) error {
	if err := l.store.Delete(ctx, Key(clientAddr)); err != nil {
		return fmt.Errorf("clear attempt record: %w", err)
	}
	return nil
}

// load fails open: any store or decode error yields an empty record.
func (l *Limiter) load(ctx context.Context, key string) Record {
	raw, found, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("attempt store read failed, allowing", "client_key", key, "err", err)
		return Record{}
	}
	if !found {
		return Record{}
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		l.logger.Warn("malformed attempt record, ignoring", "client_key", key, "err", err)
		return Record{}
	}
	return rec
}
