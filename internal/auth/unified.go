package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UnifiedBackend keeps credentials in the local users table. Its sign-in
// failures carry the exact messages the dashboard shows verbatim.
type UnifiedBackend struct {
	users UserRepository
	cost  int
	clock func() time.Time
}

func NewUnifiedBackend(users UserRepository) *UnifiedBackend {
	return &UnifiedBackend{users: users, cost: bcrypt.DefaultCost, clock: time.Now}
}

func (b *UnifiedBackend) Name() string { return "unified" }

func (b *UnifiedBackend) SignIn(ctx context.Context, email, password string) (Identity, error) {
	u, err := b.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, &Error{Code: CodeUserNotFound, Message: "User not found", Err: err}
		}
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, &Error{Code: CodeWrongPassword, Message: "Invalid password", Err: err}
	}
	return Identity{UserID: u.ID, Email: u.Email, EmailVerified: u.EmailVerified}, nil
}

func (b *UnifiedBackend) Register(ctx context.Context, email, password string) (Identity, bool, error) {
	if len(password) < 8 {
		return Identity{}, false, NewError(CodeWeakPassword, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return Identity{}, false, err
	}
	u := UserRecord{
		ID:            uuid.NewString(),
		Email:         normalizeEmail(email),
		PasswordHash:  string(hash),
		EmailVerified: true,
		CreatedAt:     b.clock().UTC(),
	}
	if err := b.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return Identity{}, false, NewError(CodeEmailInUse, err)
		}
		return Identity{}, false, err
	}
	return Identity{UserID: u.ID, Email: u.Email, EmailVerified: true}, false, nil
}

// ErrMailUnavailable is returned by mail-driven flows on the unified backend,
// which has no mailer. Its accounts are created verified.
var ErrMailUnavailable = errors.New("auth: unified backend sends no mail")

func (b *UnifiedBackend) SendPasswordReset(ctx context.Context, email string) error {
	return NewError(CodeNotSupported, ErrMailUnavailable)
}

func (b *UnifiedBackend) ResendVerification(ctx context.Context, email, password string) error {
	return NewError(CodeNotSupported, ErrMailUnavailable)
}
