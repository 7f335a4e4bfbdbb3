// Package authflow runs a login attempt through an ordered list of named
// stages and reports the outcome to observers.
package authflow

import (
	"context"
	"errors"
	"log/slog"

	"LoginGuard/internal/domain"
)

type Attempt struct {
	ClientAddr string
	Username   string
	Password   string
	UserAgent  string
}

// Result is the value threaded through the stages. A zero Result means no
// stage has decided yet.
type Result struct {
	User *domain.User
	Err  error
}

func (r Result) Decided() bool { return r.User != nil || r.Err != nil }

type Stage interface {
	Name() string
	Authenticate(ctx context.Context, att Attempt, cur Result) Result
}

type Observer interface {
	LoginFailed(ctx context.Context, att Attempt, err error)
	LoginSucceeded(ctx context.Context, att Attempt, u domain.User)
}

type Pipeline struct {
	logger    *slog.Logger
	stages    []Stage
	observers []Observer
}

func New(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

func (p *Pipeline) Use(s Stage) *Pipeline {
	p.stages = append(p.stages, s)
	return p
}

func (p *Pipeline) Observe(o Observer) *Pipeline {
	p.observers = append(p.observers, o)
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Run passes att through every stage. A lockout denial stops the chain
// immediately and is not reported to observers, so later stages (credential
// checks in particular) never see a locked-out attempt.
func (p *Pipeline) Run(ctx context.Context, att Attempt) (domain.User, error) {
	var cur Result
	for _, s := range p.stages {
		cur = s.Authenticate(ctx, att, cur)
		if errors.Is(cur.Err, domain.ErrLockedOut) {
			p.logger.Info("login attempt rejected", "stage", s.Name())
			return domain.User{}, cur.Err
		}
	}

	if !cur.Decided() {
		cur.Err = domain.ErrInvalidCredentials
	}
	if cur.Err != nil {
		if countsAsFailure(cur.Err) {
			for _, o := range p.observers {
				o.LoginFailed(ctx, att, cur.Err)
			}
		}
		return domain.User{}, cur.Err
	}

	for _, o := range p.observers {
		o.LoginSucceeded(ctx, att, *cur.User)
	}
	return *cur.User, nil
}

// Empty credentials and infrastructure errors are not failed logins.
func countsAsFailure(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserDisabled)
}
