package auth

import "context"

// Identity is what a credential backend knows about a user.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
}

// Backend verifies credentials and owns the identity lifecycle. Two
// implementations exist, selected by AUTH_BACKEND: the hosted identity
// provider and the local ("unified") users table.
//
// Failures the user can act on are returned as *Error.
type Backend interface {
	Name() string
	SignIn(ctx context.Context, email, password string) (Identity, error)
	// Register creates the identity and triggers verification when the backend supports it.
	Register(ctx context.Context, email, password string) (id Identity, requiresVerification bool, err error)
	SendPasswordReset(ctx context.Context, email string) error
	ResendVerification(ctx context.Context, email, password string) error
}
