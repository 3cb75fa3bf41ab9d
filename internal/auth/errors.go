package auth

import (
	"errors"
	"strings"
)

// Error codes surfaced to callers. The set is fixed; unknown provider codes
// collapse into CodeGeneric.
const (
	CodeUserNotFound    = "user-not-found"
	CodeWrongPassword   = "wrong-password"
	CodeInvalidEmail    = "invalid-email"
	CodeTooManyRequests = "too-many-requests"
	CodeEmailInUse      = "email-already-in-use"
	CodeWeakPassword    = "weak-password"
	CodeSessionExpired  = "session-expired"
	CodeNotSupported    = "operation-not-supported"
	CodeGeneric         = "generic"
)

var messages = map[string]string{
	CodeUserNotFound:    "No account found with this email address.",
	CodeWrongPassword:   "Incorrect password. Please try again.",
	CodeInvalidEmail:    "Please enter a valid email address.",
	CodeTooManyRequests: "Too many failed attempts. Please try again later.",
	CodeEmailInUse:      "An account with this email already exists.",
	CodeWeakPassword:    "Password must be at least 8 characters.",
	CodeSessionExpired:  "Your session has expired. Please sign in again.",
	CodeNotSupported:    "This action is not available for this account.",
	CodeGeneric:         "Authentication failed. Please try again.",
}

// Error is a user-facing auth failure. Message is safe to display as-is.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with the fixed message for code.
func NewError(code string, cause error) *Error {
	msg, ok := messages[code]
	if !ok {
		code, msg = CodeGeneric, messages[CodeGeneric]
	}
	return &Error{Code: code, Message: msg, Err: cause}
}

var ErrSessionExpired = NewError(CodeSessionExpired, nil)

// CodeOf returns the auth code carried by err, or CodeGeneric.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeGeneric
}

// MapProviderCode maps hosted identity provider error strings, such as
// "INVALID_PASSWORD" or "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", to our codes.
func MapProviderCode(providerMessage string) string {
	code := providerMessage
	if i := strings.Index(code, " "); i >= 0 {
		code = code[:i]
	}
	switch strings.TrimSpace(code) {
	case "EMAIL_NOT_FOUND":
		return CodeUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return CodeWrongPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return CodeInvalidEmail
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return CodeTooManyRequests
	case "EMAIL_EXISTS":
		return CodeEmailInUse
	case "WEAK_PASSWORD":
		return CodeWeakPassword
	default:
		return CodeGeneric
	}
}
