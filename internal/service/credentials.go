package service

import (
	"context"
	"errors"

	"LoginGuard/internal/auth"
	"LoginGuard/internal/authflow"
	"LoginGuard/internal/domain"
)

const credentialsStageName = "credentials"

// credentialsStage verifies the username or email and password against the
// users store.
type credentialsStage struct {
	users UsersStore
}

func (c *credentialsStage) Name() string { return credentialsStageName }

func (c *credentialsStage) Authenticate(ctx context.Context, att authflow.Attempt, cur authflow.Result) authflow.Result {
	if cur.Decided() {
		return cur
	}

	fields := map[string]string{}
	if att.Username == "" {
		fields["login"] = "required"
	}
	if att.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return authflow.Result{Err: domain.NewValidationError(fields)}
	}

	u, err := c.users.GetUserByLogin(ctx, att.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			auth.BurnVerify(att.Password)
			return authflow.Result{Err: domain.ErrInvalidCredentials}
		}
		return authflow.Result{Err: err}
	}
	if u.Status == domain.UserStatusDisabled {
		return authflow.Result{Err: domain.ErrUserDisabled}
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, att.Password)
	if err != nil {
		return authflow.Result{Err: err}
	}
	if !ok {
		return authflow.Result{Err: domain.ErrInvalidCredentials}
	}

	user := u.User
	return authflow.Result{User: &user}
}
