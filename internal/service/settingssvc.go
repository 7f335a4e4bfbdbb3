package service

import (
	"context"
	"fmt"
	"log/slog"

	"LoginGuard/internal/domain"
	"LoginGuard/internal/throttle"
)

type SettingsStore interface {
	GetLoginLimits(ctx context.Context) (throttle.Config, bool, error)
	UpsertLoginLimits(ctx context.Context, cfg throttle.Config) error
	ModuleStates(ctx context.Context) (map[domain.ModuleKey]bool, error)
	SetModuleEnabled(ctx context.Context, key domain.ModuleKey, enabled bool) error
}

// SettingsService owns the module toggles and the login limiter settings.
// Modules that were never toggled are disabled, except the login limiter
// which is on until an admin turns it off.
type SettingsService struct {
	Store    SettingsStore
	Attempts throttle.Store
	Logger   *slog.Logger
}

func moduleDefault(key domain.ModuleKey) bool {
	return key == domain.ModuleLimitLoginAttempts
}

func (s *SettingsService) Modules(ctx context.Context) ([]domain.Module, error) {
	states, err := s.Store.ModuleStates(ctx)
	if err != nil {
		return nil, err
	}

	infos := domain.Modules()
	out := make([]domain.Module, 0, len(infos))
	for _, info := range infos {
		enabled, ok := states[info.Key]
		if !ok {
			enabled = moduleDefault(info.Key)
		}
		out = append(out, domain.Module{ModuleInfo: info, Enabled: enabled})
	}
	return out, nil
}

func (s *SettingsService) SetModuleEnabled(ctx context.Context, key domain.ModuleKey, enabled bool) (domain.Module, error) {
	info, ok := domain.LookupModule(key)
	if !ok {
		return domain.Module{}, domain.ErrNotFound
	}
	if err := s.Store.SetModuleEnabled(ctx, key, enabled); err != nil {
		return domain.Module{}, err
	}
	s.logger().Info("module toggled", "module", key, "enabled", enabled)
	return domain.Module{ModuleInfo: info, Enabled: enabled}, nil
}

// LoginLimits returns the effective limiter settings. Missing or invalid
// stored values fall back to defaults, and so does a store error.
func (s *SettingsService) LoginLimits(ctx context.Context) throttle.Config {
	cfg, ok, err := s.Store.GetLoginLimits(ctx)
	if err != nil {
		s.logger().Warn("load login limits failed, using defaults", "err", err)
		return throttle.DefaultConfig()
	}
	if !ok {
		return throttle.DefaultConfig()
	}
	return cfg.WithDefaults()
}

func (s *SettingsService) SaveLoginLimits(ctx context.Context, cfg throttle.Config) (throttle.Config, error) {
	if err := cfg.Validate(); err != nil {
		return throttle.Config{}, err
	}
	if err := s.Store.UpsertLoginLimits(ctx, cfg); err != nil {
		return throttle.Config{}, err
	}
	s.logger().Info("login limits updated", "max_attempts", cfg.MaxAttempts, "lockout_duration", cfg.LockoutMinutes)
	return cfg, nil
}

// LoginPolicy is read once per login request. A store error leaves the
// limiter enabled with default settings.
func (s *SettingsService) LoginPolicy(ctx context.Context) (throttle.Config, bool) {
	enabled := moduleDefault(domain.ModuleLimitLoginAttempts)
	states, err := s.Store.ModuleStates(ctx)
	if err != nil {
		s.logger().Warn("load module states failed, using defaults", "err", err)
	} else if v, ok := states[domain.ModuleLimitLoginAttempts]; ok {
		enabled = v
	}
	if !enabled {
		return throttle.Config{}, false
	}
	return s.LoginLimits(ctx), true
}

// UnlockAddress forgets every recorded failure for addr.
func (s *SettingsService) UnlockAddress(ctx context.Context, addr string) error {
	if s.Attempts == nil {
		return fmt.Errorf("unlock address: no attempt store configured")
	}
	lim := throttle.New(s.Attempts, s.LoginLimits(ctx), s.logger())
	if err := lim.ClearAttempts(ctx, addr); err != nil {
		return err
	}
	s.logger().Info("address unlocked", "client_key", throttle.Key(addr))
	return nil
}

func (s *SettingsService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
