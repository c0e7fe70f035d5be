package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is deliberately generic: the login endpoint
// must not reveal whether the email exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

const sessionTTL = 24 * time.Hour

type AdminRepository struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

// Authenticate verifies the password against the stored bcrypt hash and
// opens a fresh 24h bearer session.
func (r *AdminRepository) Authenticate(ctx context.Context, email, password string) (*ports.AdminSession, error) {
	var (
		id           int64
		name         string
		passwordHash string
		isActive     bool
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, password_hash, is_active FROM admin_users WHERE email = $1`,
		email,
	).Scan(&id, &name, &passwordHash, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}
	if !isActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(raw)
	expiresAt := time.Now().Add(sessionTTL)

	_, err = r.db.Exec(ctx,
		`INSERT INTO admin_sessions (admin_id, token, expires_at) VALUES ($1, $2, $3)`,
		id, token, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	_, err = r.db.Exec(ctx, `UPDATE admin_users SET last_login = NOW() WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return &ports.AdminSession{
		AdminID:   id,
		Email:     email,
		Name:      name,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (r *AdminRepository) SessionByToken(ctx context.Context, token string) (*ports.AdminSession, error) {
	var s ports.AdminSession
	err := r.db.QueryRow(ctx, `
		SELECT s.admin_id, u.email, u.name, s.token, s.expires_at
		FROM admin_sessions s
		JOIN admin_users u ON u.id = s.admin_id
		WHERE s.token = $1 AND s.expires_at > NOW() AND u.is_active`,
		token,
	).Scan(&s.AdminID, &s.Email, &s.Name, &s.Token, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *AdminRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *AdminRepository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
