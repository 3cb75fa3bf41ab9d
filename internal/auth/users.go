package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"voiceagent-platform/internal/store"
)

var (
	ErrUserNotFound = errors.New("auth: user not found")
	ErrUserExists   = errors.New("auth: user exists")
)

// UserRecord is a local credential row used by the unified backend.
type UserRecord struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

type UserRepository interface {
	CreateUser(ctx context.Context, u UserRecord) error
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
}

type PostgresUsers struct {
	db store.DBTX
}

func NewPostgresUsers(db store.DBTX) *PostgresUsers { return &PostgresUsers{db: db} }

func (r *PostgresUsers) CreateUser(ctx context.Context, u UserRecord) error {
	const q = `
INSERT INTO users (id, email, password_hash, email_verified, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (email) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q, u.ID, normalizeEmail(u.Email), u.PasswordHash, u.EmailVerified, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("users: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users: rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

func (r *PostgresUsers) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	const q = `
SELECT id, email, password_hash, email_verified, created_at
FROM users
WHERE email = $1
`
	var u UserRecord
	err := r.db.QueryRowContext(ctx, q, normalizeEmail(email)).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func NewMemoryUsers() *MemoryUsers { return &MemoryUsers{users: map[string]UserRecord{}} }

func (r *MemoryUsers) CreateUser(_ context.Context, u UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeEmail(u.Email)
	if _, ok := r.users[key]; ok {
		return ErrUserExists
	}
	u.Email = key
	r.users[key] = u
	return nil
}

func (r *MemoryUsers) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[normalizeEmail(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
