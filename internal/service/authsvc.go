package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"LoginGuard/internal/auth"
	"LoginGuard/internal/authflow"
	"LoginGuard/internal/domain"
	"LoginGuard/internal/metrics"
	"LoginGuard/internal/notifications"
	"LoginGuard/internal/throttle"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error)
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

// LoginSettings resolves the limiter configuration for one login request.
type LoginSettings interface {
	LoginPolicy(ctx context.Context) (cfg throttle.Config, limiterEnabled bool)
}

type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, alert notifications.LockoutAlert)
}

const alertTimeout = 10 * time.Second

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	SessionTTL time.Duration

	Settings LoginSettings
	Attempts throttle.Store
	Alerts   LockoutNotifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	Now func() time.Time
}

func (s *AuthService) Register(ctx context.Context, email, username, password, ip, userAgent string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = domain.NormalizeUsername(username)
	if !domain.ValidUsername(username) {
		return domain.User{}, "", domain.NewValidationError(map[string]string{"username": domain.UsernameRule})
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, email, username, passwordHash)
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, s.now().Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	return u, sessID, nil
}

// Login authenticates through the login pipeline. When the
// limit-login-attempts module is enabled the limiter runs before credentials
// are checked; a locked-out address gets a *domain.LockoutError and the
// password is never verified.
func (s *AuthService) Login(ctx context.Context, clientAddr, login, password, userAgent string) (domain.User, string, error) {
	att := authflow.Attempt{
		ClientAddr: clientAddr,
		Username:   domain.NormalizeUsername(login),
		Password:   password,
		UserAgent:  userAgent,
	}

	u, err := s.pipeline(ctx).Run(ctx, att)
	s.Metrics.LoginAttempt(loginOutcome(err))
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, s.now().Add(s.SessionTTL), clientAddr, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	if err := s.Users.SetLastLogin(ctx, u.ID, s.now()); err != nil {
		s.logger().Warn("set last login failed", "user_id", u.ID, "err", err)
	}

	return u, sessID, nil
}

// LoginStages reports the stage names a login would run through right now.
func (s *AuthService) LoginStages(ctx context.Context) []string {
	return s.pipeline(ctx).Stages()
}

func (s *AuthService) pipeline(ctx context.Context) *authflow.Pipeline {
	logger := s.logger()
	p := authflow.New(logger)

	if s.Settings != nil && s.Attempts != nil {
		cfg, enabled := s.Settings.LoginPolicy(ctx)
		if enabled {
			stage := &throttle.Stage{
				Limiter:   throttle.New(s.Attempts, cfg, logger),
				Now:       s.now,
				OnLockout: s.lockedOut,
			}
			p.Use(stage).Observe(stage)
		}
	}

	return p.Use(&credentialsStage{users: s.Users})
}

func (s *AuthService) lockedOut(ctx context.Context, clientAddr string, rec throttle.Record) {
	key := throttle.Key(clientAddr)
	s.Metrics.Lockout()
	s.logger().Warn("client locked out", "client_key", key, "failures", rec.FailureCount, "locked_until", rec.LockedUntil)

	if s.Alerts == nil {
		return
	}
	alert := notifications.LockoutAlert{
		ClientKey:    key,
		FailureCount: rec.FailureCount,
		LockedUntil:  time.Unix(rec.LockedUntil, 0),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		s.Alerts.NotifyLockout(ctx, alert)
	}()
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if u.Status == domain.UserStatusDisabled {
		return domain.User{}, domain.ErrForbidden
	}

	return u, nil
}

// now never assigns s.Now; the service is shared across requests.
func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrLockedOut):
		return metrics.OutcomeLockedOut
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeInvalidCredentials
	case errors.Is(err, domain.ErrUserDisabled):
		return metrics.OutcomeDisabled
	default:
		return metrics.OutcomeError
	}
}
