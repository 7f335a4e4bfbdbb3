package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"LoginGuard/internal/auth"
	"LoginGuard/internal/domain"
	"LoginGuard/internal/kvstore"
	"LoginGuard/internal/notifications"
	"LoginGuard/internal/throttle"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc     func(context.Context, string, string, string) (domain.User, error)
	getUserByIDFunc    func(context.Context, string) (domain.User, error)
	getUserByLoginFunc func(context.Context, string) (domain.UserWithPassword, error)
	setLastLoginFunc   func(context.Context, string, time.Time) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, email, username, passwordHash)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error) {
	if s.getUserByLoginFunc != nil {
		return s.getUserByLoginFunc(ctx, login)
	}
	s.t.Fatalf("GetUserByLogin called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	if s.setLastLoginFunc != nil {
		return s.setLastLoginFunc(ctx, userID, when)
	}
	s.t.Fatalf("SetLastLogin called unexpectedly")
	return errors.New("unexpected call")
}

type stubSessionsStore struct {
	t *testing.T

	createSessionFunc func(context.Context, string, time.Time, string, string) (string, error)
	getSessionFunc    func(context.Context, string) (domain.Session, error)
	revokeSessionFunc func(context.Context, string, time.Time) error
}

func (s *stubSessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	if s.createSessionFunc != nil {
		return s.createSessionFunc(ctx, userID, expiresAt, ip, userAgent)
	}
	s.t.Fatalf("CreateSession called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubSessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if s.getSessionFunc != nil {
		return s.getSessionFunc(ctx, sessionID)
	}
	s.t.Fatalf("GetSession called unexpectedly")
	return domain.Session{}, errors.New("unexpected call")
}

func (s *stubSessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	if s.revokeSessionFunc != nil {
		return s.revokeSessionFunc(ctx, sessionID, when)
	}
	s.t.Fatalf("RevokeSession called unexpectedly")
	return errors.New("unexpected call")
}

type fixedPolicy struct {
	cfg     throttle.Config
	enabled bool
}

func (p fixedPolicy) LoginPolicy(context.Context) (throttle.Config, bool) { return p.cfg, p.enabled }

type alertRecorder chan notifications.LockoutAlert

func (a alertRecorder) NotifyLockout(_ context.Context, alert notifications.LockoutAlert) { a <- alert }

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func playerStore(t *testing.T, password string, lookups *int32) *stubUsersStore {
	hash := mustHash(t, password)
	return &stubUsersStore{
		t: t,
		getUserByLoginFunc: func(_ context.Context, login string) (domain.UserWithPassword, error) {
			atomic.AddInt32(lookups, 1)
			if login != "player" {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1", Username: "player", Status: domain.UserStatusActive},
				PasswordHash: hash,
			}, nil
		},
		setLastLoginFunc: func(context.Context, string, time.Time) error { return nil },
	}
}

func TestAuthServiceLoginSuccessClearsFailures(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var lookups int32
	attempts := kvstore.NewMemory()

	svc := &AuthService{
		Users: playerStore(t, "correct horse", &lookups),
		Sessions: &stubSessionsStore{
			t: t,
			createSessionFunc: func(_ context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
				if userID != "user-1" || ip != "203.0.113.9" || userAgent != "unit-test" {
					t.Fatalf("unexpected session args: %s %s %s", userID, ip, userAgent)
				}
				if !expiresAt.Equal(now.Add(time.Hour)) {
					t.Fatalf("unexpected expiry: %s", expiresAt)
				}
				return "sess-1", nil
			},
		},
		SessionTTL: time.Hour,
		Settings:   fixedPolicy{cfg: throttle.Config{MaxAttempts: 3, LockoutMinutes: 10}, enabled: true},
		Attempts:   attempts,
		Now:        func() time.Time { return now },
	}
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "203.0.113.9", "player", "wrong", "unit-test"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if attempts.Len() != 1 {
		t.Fatalf("expected a failure record, have %d", attempts.Len())
	}

	u, sessID, err := svc.Login(ctx, "203.0.113.9", " player ", "correct horse", "unit-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "user-1" || sessID != "sess-1" {
		t.Fatalf("unexpected login result: %+v %s", u, sessID)
	}
	if attempts.Len() != 0 {
		t.Fatalf("expected failures cleared after success, have %d records", attempts.Len())
	}
}

func TestAuthServiceLockoutSkipsCredentialCheck(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var lookups int32
	alerts := make(alertRecorder, 1)

	svc := &AuthService{
		Users:      playerStore(t, "correct horse", &lookups),
		Sessions:   &stubSessionsStore{t: t},
		SessionTTL: time.Hour,
		Settings:   fixedPolicy{cfg: throttle.Config{MaxAttempts: 3, LockoutMinutes: 10}, enabled: true},
		Attempts:   kvstore.NewMemory(),
		Alerts:     alerts,
		Now:        func() time.Time { return now },
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Login(ctx, "198.51.100.7", "player", "wrong", "ua"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	select {
	case alert := <-alerts:
		if alert.ClientKey != throttle.Key("198.51.100.7") || alert.FailureCount != 3 {
			t.Fatalf("unexpected alert: %+v", alert)
		}
		if !alert.LockedUntil.Equal(now.Add(10 * time.Minute)) {
			t.Fatalf("unexpected locked until: %s", alert.LockedUntil)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a lockout alert")
	}

	_, _, err := svc.Login(ctx, "198.51.100.7", "player", "correct horse", "ua")
	var lockout *domain.LockoutError
	if !errors.As(err, &lockout) {
		t.Fatalf("expected lockout error, got %v", err)
	}
	if lockout.MinutesRemaining != 10 {
		t.Fatalf("expected 10 minutes remaining, got %d", lockout.MinutesRemaining)
	}
	if lockout.Message != "Too many failed login attempts. Please try again in 10 minutes." {
		t.Fatalf("unexpected message: %q", lockout.Message)
	}
	if got := atomic.LoadInt32(&lookups); got != 3 {
		t.Fatalf("expected credentials checked 3 times, got %d", got)
	}

	// Another address is unaffected.
	if _, _, err := svc.Login(ctx, "198.51.100.8", "player", "wrong", "ua"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for other address, got %v", err)
	}
}

func TestAuthServiceLimiterDisabled(t *testing.T) {
	var lookups int32
	attempts := kvstore.NewMemory()
	svc := &AuthService{
		Users:      playerStore(t, "correct horse", &lookups),
		Sessions:   &stubSessionsStore{t: t},
		SessionTTL: time.Hour,
		Settings:   fixedPolicy{cfg: throttle.Config{MaxAttempts: 1, LockoutMinutes: 10}, enabled: false},
		Attempts:   attempts,
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Login(ctx, "10.0.0.1", "player", "wrong", "ua"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	if attempts.Len() != 0 {
		t.Fatalf("expected no attempt records with the limiter disabled")
	}
	if got := svc.LoginStages(ctx); len(got) != 1 || got[0] != credentialsStageName {
		t.Fatalf("unexpected stages: %v", got)
	}
}

func TestAuthServiceLoginStagesOrder(t *testing.T) {
	svc := &AuthService{
		Users:    &stubUsersStore{t: t},
		Settings: fixedPolicy{enabled: true},
		Attempts: kvstore.NewMemory(),
	}
	got := svc.LoginStages(context.Background())
	if len(got) != 2 || got[0] != throttle.StageName || got[1] != credentialsStageName {
		t.Fatalf("unexpected stages: %v", got)
	}
}

func TestAuthServiceEmptyCredentialsNotCounted(t *testing.T) {
	attempts := kvstore.NewMemory()
	svc := &AuthService{
		Users:    &stubUsersStore{t: t},
		Sessions: &stubSessionsStore{t: t},
		Settings: fixedPolicy{cfg: throttle.Config{MaxAttempts: 1, LockoutMinutes: 10}, enabled: true},
		Attempts: attempts,
	}

	_, _, err := svc.Login(context.Background(), "10.0.0.2", "", "", "ua")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if attempts.Len() != 0 {
		t.Fatalf("expected empty credentials not to be recorded")
	}
}

func TestAuthServiceUnknownUserCounts(t *testing.T) {
	var lookups int32
	attempts := kvstore.NewMemory()
	svc := &AuthService{
		Users:    playerStore(t, "correct horse", &lookups),
		Sessions: &stubSessionsStore{t: t},
		Settings: fixedPolicy{cfg: throttle.Config{MaxAttempts: 5, LockoutMinutes: 10}, enabled: true},
		Attempts: attempts,
	}

	_, _, err := svc.Login(context.Background(), "10.0.0.3", "ghost", "whatever", "ua")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if attempts.Len() != 1 {
		t.Fatalf("expected unknown user failure to be recorded")
	}
}

func TestAuthServiceStoreErrorNotCounted(t *testing.T) {
	attempts := kvstore.NewMemory()
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			getUserByLoginFunc: func(context.Context, string) (domain.UserWithPassword, error) {
				return domain.UserWithPassword{}, errors.New("db down")
			},
		},
		Sessions: &stubSessionsStore{t: t},
		Settings: fixedPolicy{cfg: throttle.Config{MaxAttempts: 1, LockoutMinutes: 10}, enabled: true},
		Attempts: attempts,
	}

	_, _, err := svc.Login(context.Background(), "10.0.0.4", "player", "pw", "ua")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if attempts.Len() != 0 {
		t.Fatalf("expected infrastructure errors not to be recorded")
	}
}

func TestAuthServiceDisabledUser(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			getUserByLoginFunc: func(context.Context, string) (domain.UserWithPassword, error) {
				return domain.UserWithPassword{User: domain.User{ID: "user-9", Status: domain.UserStatusDisabled}}, nil
			},
		},
		Sessions: &stubSessionsStore{t: t},
	}

	_, _, err := svc.Login(context.Background(), "10.0.0.5", "player", "pw", "ua")
	if !errors.Is(err, domain.ErrUserDisabled) {
		t.Fatalf("expected user disabled, got %v", err)
	}
}

func TestAuthServiceRegisterNormalizes(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			createUserFunc: func(_ context.Context, email, username, passwordHash string) (domain.User, error) {
				if email != "player@example.com" || username != "player" {
					t.Fatalf("unexpected create args: %q %q", email, username)
				}
				if ok, err := auth.VerifyPassword(passwordHash, "correct horse"); err != nil || !ok {
					t.Fatalf("password hash does not verify")
				}
				return domain.User{ID: "user-2", Email: email, Username: username}, nil
			},
		},
		Sessions: &stubSessionsStore{
			t: t,
			createSessionFunc: func(context.Context, string, time.Time, string, string) (string, error) {
				return "sess-2", nil
			},
		},
		SessionTTL: time.Hour,
	}

	u, sessID, err := svc.Register(context.Background(), " Player@Example.com ", " player ", "correct horse", "1.2.3.4", "ua")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "user-2" || sessID != "sess-2" {
		t.Fatalf("unexpected register result: %+v %s", u, sessID)
	}
}

func TestAuthServiceRegisterRejectsInvalidUsername(t *testing.T) {
	svc := &AuthService{Users: &stubUsersStore{t: t}, Sessions: &stubSessionsStore{t: t}}

	for _, username := range []string{"", " ab ", "has space", "dash-name"} {
		_, _, err := svc.Register(context.Background(), "p@example.com", username, "correct horse battery", "1.2.3.4", "ua")
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Fields["username"] != domain.UsernameRule {
			t.Fatalf("%q: expected username validation error, got %v", username, err)
		}
	}
}

func TestAuthServiceGetUserForSession(t *testing.T) {
	tests := []struct {
		name    string
		sessErr error
		user    domain.User
		userErr error
		wantErr error
	}{
		{name: "unknown session", sessErr: domain.ErrNotFound, wantErr: domain.ErrUnauthorized},
		{name: "deleted user", userErr: domain.ErrNotFound, wantErr: domain.ErrUnauthorized},
		{name: "disabled user", user: domain.User{ID: "u", Status: domain.UserStatusDisabled}, wantErr: domain.ErrForbidden},
		{name: "active user", user: domain.User{ID: "u", Status: domain.UserStatusActive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &AuthService{
				Users: &stubUsersStore{
					t: t,
					getUserByIDFunc: func(context.Context, string) (domain.User, error) {
						return tt.user, tt.userErr
					},
				},
				Sessions: &stubSessionsStore{
					t: t,
					getSessionFunc: func(context.Context, string) (domain.Session, error) {
						return domain.Session{ID: "s", UserID: "u"}, tt.sessErr
					},
				},
			}
			u, err := svc.GetUserForSession(context.Background(), "s")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || u.ID != "u" {
				t.Fatalf("unexpected result: %+v %v", u, err)
			}
		})
	}
}

func TestAuthServiceConcurrentLogins(t *testing.T) {
	var lookups int32
	attempts := kvstore.NewMemory()
	svc := &AuthService{
		Users: playerStore(t, "correct horse", &lookups),
		Sessions: &stubSessionsStore{
			t: t,
			createSessionFunc: func(context.Context, string, time.Time, string, string) (string, error) {
				return "sess", nil
			},
		},
		SessionTTL: time.Hour,
		Settings:   fixedPolicy{cfg: throttle.Config{MaxAttempts: 100, LockoutMinutes: 10}, enabled: true},
		Attempts:   attempts,
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			password := "wrong"
			if i%2 == 0 {
				password = "correct horse"
			}
			_, _, _ = svc.Login(ctx, "10.0.0.1", "player", password, "ua")
		}(i)
	}
	wg.Wait()

	if svc.Now != nil {
		t.Fatalf("Login must not assign the shared clock")
	}
	if got := atomic.LoadInt32(&lookups); got != 4 {
		t.Fatalf("expected 4 credential checks, got %d", got)
	}
}
