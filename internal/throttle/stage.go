package throttle

import (
	"context"
	"time"

	"LoginGuard/internal/authflow"
	"LoginGuard/internal/domain"
)

// StageName is the pipeline name of the limiter and also its module key.
const StageName = string(domain.ModuleLimitLoginAttempts)

// LockoutFunc is invoked after a failure that put clientAddr under lockout.
type LockoutFunc func(ctx context.Context, clientAddr string, rec Record)

// Stage plugs a Limiter into an authflow.Pipeline. It is both the stage that
// rejects locked-out clients before credentials are checked and the observer
// that records the outcome afterwards.
type Stage struct {
	Limiter   *Limiter
	Now       func() time.Time
	OnLockout LockoutFunc
}

var (
	_ authflow.Stage    = (*Stage)(nil)
	_ authflow.Observer = (*Stage)(nil)
)

func (s *Stage) Name() string { return StageName }

func (s *Stage) Authenticate(ctx context.Context, att authflow.Attempt, cur authflow.Result) authflow.Result {
	if att.Username == "" {
		return cur
	}
	d := s.Limiter.CheckLockout(ctx, att.ClientAddr, s.now())
	if d.Allowed {
		return cur
	}
	return authflow.Result{Err: d.Err()}
}

func (s *Stage) LoginFailed(ctx context.Context, att authflow.Attempt, _ error) {
	now := s.now()
	rec, err := s.Limiter.RecordFailure(ctx, att.ClientAddr, now)
	if err != nil {
		s.Limiter.logger.Warn("record login failure", "client_key", Key(att.ClientAddr), "err", err)
		return
	}
	if rec.Locked(now) && s.OnLockout != nil {
		s.OnLockout(ctx, att.ClientAddr, rec)
	}
}

func (s *Stage) LoginSucceeded(ctx context.Context, att authflow.Attempt, _ domain.User) {
	if err := s.Limiter.ClearAttempts(ctx, att.ClientAddr); err != nil {
		s.Limiter.logger.Warn("clear login attempts", "client_key", Key(att.ClientAddr), "err", err)
	}
}

func (s *Stage) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
