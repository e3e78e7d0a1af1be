package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the system tables if needed and seeds the first
// administrator.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SystemTablesSQL()); err != nil {
		return fmt.Errorf("bootstrap system tables: %w", err)
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	s.log.Debug().Str("dialect", s.Dialect.Name()).Msg("system tables ready")
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.CreateUser(ctx, "admin@localhost", string(hash), []string{"administrator"}); err != nil {
		return err
	}

	s.log.Warn().Msg("default administrator created (admin@localhost / changeme); change the password immediately")
	return nil
}

// User is an admin API account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Active       bool
}

// CreateUser inserts an active user.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, roles []string) error {
	_, err := s.DB.ExecContext(ctx, s.q(
		`INSERT INTO _users (id, email, password_hash, roles, active) VALUES ($1, $2, $3, $4, $5)`),
		uuid.NewString(), email, passwordHash, s.Dialect.ArrayParam(roles), true)
	if err != nil {
		return fmt.Errorf("create user %s: %w", email, s.Dialect.MapError(err))
	}
	return nil
}

// FindUserByEmail looks up a user for login.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var roles any
	err := s.DB.QueryRowContext(ctx, s.q(
		`SELECT id, email, password_hash, roles, active FROM _users WHERE email = $1`), email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &roles, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u.Roles, err = s.Dialect.ScanArray(roles); err != nil {
		return nil, err
	}
	return &u, nil
}
