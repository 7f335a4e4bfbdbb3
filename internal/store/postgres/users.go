package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LoginGuard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type UsersStore struct {
	db DB
}

func NewUsersStore(db DB) *UsersStore {
	return &UsersStore{db: db}
}

const userColumns = `id, email, username, status, created_at, updated_at, last_login_at`

func (s *UsersStore) CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error) {
	q := `
		INSERT INTO users (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, q, nullIfEmpty(email), username, passwordHash), nil)
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.db.QueryRow(ctx, q, id), nil)
	if err != nil {
		return domain.User{}, notFoundOr(err, "get user by id")
	}
	return u, nil
}

// GetUserByLogin matches a username first, then an email address.
func (s *UsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error) {
	q := `
		SELECT ` + userColumns + `, password_hash
		FROM users
		WHERE username = $1 OR (email IS NOT NULL AND email = $1)
		ORDER BY (username = $1) DESC
		LIMIT 1
	`

	var u domain.UserWithPassword
	user, err := scanUser(s.db.QueryRow(ctx, q, login), &u.PasswordHash)
	if err != nil {
		return domain.UserWithPassword{}, notFoundOr(err, "get user by login")
	}
	u.User = user
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1 LIMIT 1`

	var u domain.UserWithPassword
	user, err := scanUser(s.db.QueryRow(ctx, q, email), &u.PasswordHash)
	if err != nil {
		return domain.UserWithPassword{}, notFoundOr(err, "get user by email")
	}
	u.User = user
	return u, nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

// scanUser reads userColumns and, when passwordHash is non-nil, one trailing
// password_hash column.
func scanUser(row pgx.Row, passwordHash *string) (domain.User, error) {
	var (
		u           domain.User
		idUUID      pgtype.UUID
		emailText   pgtype.Text
		lastLoginTS pgtype.Timestamptz
	)
	dest := []any{&idUUID, &emailText, &u.Username, &u.Status, &u.CreatedAt, &u.UpdatedAt, &lastLoginTS}
	if passwordHash != nil {
		dest = append(dest, passwordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}

	u.ID = uuidOrEmpty(idUUID)
	u.Email = textOrEmpty(emailText)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	return u, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_username_uq":
			return domain.ErrUsernameTaken
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
