package postgres

import (
	"context"
	"errors"
	"fmt"

	"LoginGuard/internal/domain"
	"LoginGuard/internal/throttle"

	"github.com/jackc/pgx/v5"
)

// SettingsStore persists module toggles and the login limiter options.
type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetLoginLimits returns ok=false when nothing has been saved yet. The values
// are returned as stored; callers apply defaults.
func (s *SettingsStore) GetLoginLimits(ctx context.Context) (throttle.Config, bool, error) {
	const q = `
		SELECT max_attempts, lockout_duration, lockout_message
		FROM login_limit_settings
		WHERE id = 1
	`

	var cfg throttle.Config
	err := s.db.QueryRow(ctx, q).Scan(&cfg.MaxAttempts, &cfg.LockoutMinutes, &cfg.LockoutMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return throttle.Config{}, false, nil
		}
		return throttle.Config{}, false, fmt.Errorf("get login limits: %w", err)
	}
	return cfg, true, nil
}

func (s *SettingsStore) UpsertLoginLimits(ctx context.Context, cfg throttle.Config) error {
	const q = `
		INSERT INTO login_limit_settings (id, max_attempts, lockout_duration, lockout_message, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id)
		DO UPDATE SET
			max_attempts = EXCLUDED.max_attempts,
			lockout_duration = EXCLUDED.lockout_duration,
			lockout_message = EXCLUDED.lockout_message,
			updated_at = now()
	`

	if _, err := s.db.Exec(ctx, q, cfg.MaxAttempts, cfg.LockoutMinutes, cfg.LockoutMessage); err != nil {
		return fmt.Errorf("upsert login limits: %w", err)
	}
	return nil
}

// ModuleStates returns the stored toggles. Modules never toggled are absent.
func (s *SettingsStore) ModuleStates(ctx context.Context) (map[domain.ModuleKey]bool, error) {
	const q = `SELECT key, enabled FROM module_settings`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list module settings: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ModuleKey]bool)
	for rows.Next() {
		var (
			key     string
			enabled bool
		)
		if err := rows.Scan(&key, &enabled); err != nil {
			return nil, fmt.Errorf("scan module setting: %w", err)
		}
		out[domain.ModuleKey(key)] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list module settings: %w", err)
	}
	return out, nil
}

func (s *SettingsStore) SetModuleEnabled(ctx context.Context, key domain.ModuleKey, enabled bool) error {
	const q = `
		INSERT INTO module_settings (key, enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
	`

	if _, err := s.db.Exec(ctx, q, string(key), enabled); err != nil {
		return fmt.Errorf("set module %s: %w", key, err)
	}
	return nil
}
