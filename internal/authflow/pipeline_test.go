package authflow

import (
	"context"
	"errors"
	"testing"

	"LoginGuard/internal/domain"

	"github.com/stretchr/testify/require"
)

type funcStage struct {
	name  string
	calls *[]string
	fn    func(Attempt, Result) Result
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Authenticate(_ context.Context, att Attempt, cur Result) Result {
	*s.calls = append(*s.calls, s.name)
	return s.fn(att, cur)
}

type recordingObserver struct {
	failed    []error
	succeeded []string
}

func (o *recordingObserver) LoginFailed(_ context.Context, _ Attempt, err error) {
	o.failed = append(o.failed, err)
}

func (o *recordingObserver) LoginSucceeded(_ context.Context, _ Attempt, u domain.User) {
	o.succeeded = append(o.succeeded, u.ID)
}

func passthrough(_ Attempt, cur Result) Result { return cur }

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var calls []string
	obs := &recordingObserver{}
	p := New(nil).
		Use(funcStage{name: "first", calls: &calls, fn: passthrough}).
		Use(funcStage{name: "second", calls: &calls, fn: func(_ Attempt, cur Result) Result {
			return Result{User: &domain.User{ID: "u1"}}
		}}).
		Observe(obs)

	u, err := p.Run(context.Background(), Attempt{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.Equal(t, []string{"first", "second"}, calls)
	require.Equal(t, []string{"first", "second"}, p.Stages())
	require.Equal(t, []string{"u1"}, obs.succeeded)
	require.Empty(t, obs.failed)
}

func TestPipelineLockoutHaltsChain(t *testing.T) {
	var calls []string
	obs := &recordingObserver{}
	p := New(nil).
		Use(funcStage{name: "limiter", calls: &calls, fn: func(Attempt, Result) Result {
			return Result{Err: &domain.LockoutError{MinutesRemaining: 3, Message: "locked"}}
		}}).
		Use(funcStage{name: "credentials", calls: &calls, fn: func(Attempt, Result) Result {
			t.Fatalf("credentials stage must not run for a locked client")
			return Result{}
		}}).
		Observe(obs)

	_, err := p.Run(context.Background(), Attempt{Username: "alice"})
	require.ErrorIs(t, err, domain.ErrLockedOut)

	var lockout *domain.LockoutError
	require.True(t, errors.As(err, &lockout))
	require.Equal(t, 3, lockout.MinutesRemaining)
	require.Equal(t, []string{"limiter"}, calls)
	require.Empty(t, obs.failed)
	require.Empty(t, obs.succeeded)
}

func TestPipelineUndecidedIsInvalidCredentials(t *testing.T) {
	var calls []string
	obs := &recordingObserver{}
	p := New(nil).Use(funcStage{name: "noop", calls: &calls, fn: passthrough}).Observe(obs)

	_, err := p.Run(context.Background(), Attempt{Username: "alice"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Len(t, obs.failed, 1)
}

func TestPipelineFailureReporting(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		reported bool
	}{
		{name: "invalid credentials", err: domain.ErrInvalidCredentials, reported: true},
		{name: "disabled user", err: domain.ErrUserDisabled, reported: true},
		{name: "empty credentials", err: domain.NewValidationError(map[string]string{"login": "required"}), reported: false},
		{name: "store outage", err: errors.New("db down"), reported: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			obs := &recordingObserver{}
			p := New(nil).Use(funcStage{name: "credentials", calls: &calls, fn: func(Attempt, Result) Result {
				return Result{Err: tt.err}
			}}).Observe(obs)

			_, err := p.Run(context.Background(), Attempt{Username: "alice"})
			require.ErrorIs(t, err, tt.err)
			if tt.reported {
				require.Len(t, obs.failed, 1)
			} else {
				require.Empty(t, obs.failed)
			}
		})
	}
}
