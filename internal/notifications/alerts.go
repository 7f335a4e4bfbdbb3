package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// LockoutAlert describes a client address that just got locked out. ClientKey
// is the hashed store key, never the raw address.
type LockoutAlert struct {
	ClientKey    string
	FailureCount int
	LockedUntil  time.Time
}

type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// LockoutAlerter pushes lockout alerts to a fixed set of admin device tokens.
type LockoutAlerter struct {
	Sender Sender
	Tokens []string
	Logger *slog.Logger
}

func (a *LockoutAlerter) NotifyLockout(ctx context.Context, alert LockoutAlert) {
	if a == nil || a.Sender == nil || len(a.Tokens) == 0 {
		return
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	msg := Message{
		Data: map[string]string{
			"type":          "login_lockout",
			"client_key":    alert.ClientKey,
			"failure_count": strconv.Itoa(alert.FailureCount),
			"locked_until":  alert.LockedUntil.UTC().Format(time.RFC3339),
		},
		Notification: &Notification{
			Title: "Login lockout",
			Body:  "A client was locked out after " + strconv.Itoa(alert.FailureCount) + " failed login attempts.",
		},
	}

	for _, token := range a.Tokens {
		if err := a.Sender.Send(ctx, token, msg); err != nil {
			if errors.Is(err, ErrInvalidToken) {
				logger.Warn("lockout alert: token no longer registered", "err", err)
				continue
			}
			logger.Error("lockout alert send failed", "err", err)
		}
	}
}
