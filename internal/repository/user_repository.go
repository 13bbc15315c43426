package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mptx4869/store/internal/domain"
)

const userColumns = `id, username, email, password_hash, role, status, created_at`

func (r *Repository) CreateUser(ctx context.Context, q DBTX, user *domain.User) error {
	query := `INSERT INTO users (username, email, password_hash, role, status)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	err := q.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Role, user.Status,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, q DBTX, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(q.QueryRowContext(ctx, query, username))
}

func (r *Repository) GetUserByID(ctx context.Context, q DBTX, userID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.QueryRowContext(ctx, query, userID))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (r *Repository) InsertToken(ctx context.Context, q DBTX, token string, userID int64, expiresAt time.Time) error {
	query := `INSERT INTO auth_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := q.ExecContext(ctx, query, token, userID, expiresAt); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetTokenIdentity resolves a bearer token to the identity it was issued for.
// Expired tokens are treated as absent.
func (r *Repository) GetTokenIdentity(ctx context.Context, q DBTX, token string) (*domain.Identity, error) {
	query := `SELECT u.id, u.role
	          FROM auth_tokens t
	          JOIN users u ON u.id = t.user_id
	          WHERE t.token = $1 AND t.expires_at > NOW() AND u.status = 'ACTIVE'`
	var id domain.Identity
	err := q.QueryRowContext(ctx, query, token).Scan(&id.UserID, &id.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}
	return &id, nil
}
