package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TransientsStore is an expiring key-value store on a Postgres table. Expired
// rows are invisible to Get and removed by DeleteExpired.
type TransientsStore struct {
	db  DB
	now func() time.Time
}

func NewTransientsStore(db DB) *TransientsStore {
	return &TransientsStore{db: db, now: time.Now}
}

func (s *TransientsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `
		SELECT value
		FROM transients
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`

	var value []byte
	if err := s.db.QueryRow(ctx, q, key, s.now().UTC()).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get transient: %w", err)
	}
	return value, true, nil
}

func (s *TransientsStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const q = `
		INSERT INTO transients (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`

	if _, err := s.db.Exec(ctx, q, key, value, expiryOrNull(s.now(), ttl)); err != nil {
		return fmt.Errorf("set transient: %w", err)
	}
	return nil
}

func (s *TransientsStore) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM transients WHERE key = $1`

	if _, err := s.db.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("delete transient: %w", err)
	}
	return nil
}

func (s *TransientsStore) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM transients WHERE expires_at IS NOT NULL AND expires_at <= $1`

	tag, err := s.db.Exec(ctx, q, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired transients: %w", err)
	}
	return tag.RowsAffected(), nil
}
