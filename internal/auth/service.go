package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/clients"
	"voiceagent-platform/internal/session"
	"voiceagent-platform/pkg/logger"
)

// Navigation targets returned to the dashboard after sign-in and sign-out.
const (
	NextAfterSignIn  = "/dashboard"
	NextAfterSignOut = "/login"
)

const (
	roleClient = "client"
	roleAdmin  = "admin"
)

type SignInResult struct {
	User     session.User    `json:"user"`
	UserData *clients.Client `json:"userData,omitempty"`
	Tokens   TokenPair       `json:"tokens"`
	Next     string          `json:"next"`
}

type RegisterResult struct {
	Success              bool          `json:"success"`
	RequiresVerification bool          `json:"requiresVerification"`
	UserID               string        `json:"userId"`
	Tokens               *TokenPair    `json:"tokens,omitempty"`
	User                 *session.User `json:"user,omitempty"`
}

// SessionService is the single entry point for sign-in, registration,
// refresh and sign-out. Whatever backend verified the credentials, the
// session it produces is our own token pair, mirrored into the session store.
type SessionService struct {
	backend Backend
	tokens  *Manager
	store   *session.Store
	clients clients.Repository
	audit   *audit.Service
	admins  map[string]struct{}
	clock   func() time.Time
}

func NewSessionService(backend Backend, tokens *Manager, store *session.Store, cr clients.Repository, au *audit.Service, adminEmails []string) *SessionService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &SessionService{
		backend: backend,
		tokens:  tokens,
		store:   store,
		clients: cr,
		audit:   au,
		admins:  admins,
		clock:   time.Now,
	}
}

func (s *SessionService) Backend() string { return s.backend.Name() }

func (s *SessionService) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	id, err := s.backend.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return SignInResult{}, asAuthError(err)
	}

	var profile *clients.Client
	c, err := s.clients.Get(ctx, id.UserID)
	switch {
	case err == nil:
		profile = &c
	case errors.Is(err, clients.ErrNotFound):
		// identities created outside registration have no client row yet
	default:
		return SignInResult{}, err
	}

	user := s.sessionUser(id, profile)
	pair, err := s.tokens.IssuePair(s.clock(), id.UserID, id.UserID, user.Role)
	if err != nil {
		return SignInResult{}, err
	}
	if err := s.store.Save(ctx, id.UserID, session.Data{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &user,
	}); err != nil {
		return SignInResult{}, err
	}

	s.record(ctx, audit.EventTypeSignIn, id.UserID, "signed in via "+s.backend.Name())
	return SignInResult{User: user, UserData: profile, Tokens: pair, Next: NextAfterSignIn}, nil
}

// Register creates the identity and the client profile. The profile's ID and
// e-mail are taken from the new identity. When the backend needs no e-mail
// verification the caller is signed in immediately.
func (s *SessionService) Register(ctx context.Context, email, password string, profile clients.Client) (RegisterResult, error) {
	id, requiresVerification, err := s.backend.Register(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return RegisterResult{}, asAuthError(err)
	}

	profile.ID = id.UserID
	profile.Email = id.Email
	if err := s.clients.Create(ctx, profile); err != nil {
		return RegisterResult{}, err
	}
	s.record(ctx, audit.EventTypeRegister, id.UserID, "registered on plan "+profile.Plan)

	res := RegisterResult{Success: true, RequiresVerification: requiresVerification, UserID: id.UserID}
	if requiresVerification {
		return res, nil
	}

	user := s.sessionUser(id, &profile)
	pair, err := s.tokens.IssuePair(s.clock(), id.UserID, id.UserID, user.Role)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := s.store.Save(ctx, id.UserID, session.Data{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &user,
	}); err != nil {
		return RegisterResult{}, err
	}
	res.Tokens = &pair
	res.User = &user
	return res, nil
}

// Refresh rotates the token pair. The presented refresh token must be the one
// stored for the user; any mismatch tears the session down.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh, s.clock())
	if err != nil {
		return TokenPair{}, ErrSessionExpired
	}

	d, err := s.store.Get(ctx, claims.UserID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return TokenPair{}, err
	}
	if err != nil || d.RefreshToken != refreshToken {
		s.expire(ctx, claims.UserID)
		return TokenPair{}, ErrSessionExpired
	}

	role := roleClient
	if d.User != nil && d.User.Role != "" {
		role = d.User.Role
	}
	pair, err := s.tokens.IssuePair(s.clock(), claims.UserID, claims.ClientID, role)
	if err != nil {
		return TokenPair{}, err
	}
	d.AccessToken, d.RefreshToken = pair.AccessToken, pair.RefreshToken
	if err := s.store.Save(ctx, claims.UserID, d); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// SignOut clears the session and returns where the caller should navigate.
func (s *SessionService) SignOut(ctx context.Context, userID string) (string, error) {
	if err := s.store.Clear(ctx, userID); err != nil {
		return "", err
	}
	s.record(ctx, audit.EventTypeSignOut, userID, "signed out")
	return NextAfterSignOut, nil
}

// CurrentUser answers the session-restore probe. A token whose stored session
// vanished is treated as expired.
func (s *SessionService) CurrentUser(ctx context.Context, userID string) (session.User, *session.AgentData, error) {
	d, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.expire(ctx, userID)
			return session.User{}, nil, ErrSessionExpired
		}
		return session.User{}, nil, err
	}
	if d.User == nil {
		s.expire(ctx, userID)
		return session.User{}, nil, ErrSessionExpired
	}
	return *d.User, d.Agent, nil
}

func (s *SessionService) IsActiveAccessToken(ctx context.Context, userID, token string) (bool, error) {
	d, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return d.AccessToken == token, nil
}

func (s *SessionService) SendPasswordReset(ctx context.Context, email string) error {
	if err := s.backend.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return asAuthError(err)
	}
	return nil
}

func (s *SessionService) ResendVerification(ctx context.Context, email, password string) error {
	if err := s.backend.ResendVerification(ctx, strings.TrimSpace(email), password); err != nil {
		return asAuthError(err)
	}
	return nil
}

func (s *SessionService) sessionUser(id Identity, c *clients.Client) session.User {
	u := session.User{
		ID:            id.UserID,
		Email:         id.Email,
		Role:          roleClient,
		EmailVerified: id.EmailVerified,
	}
	if _, ok := s.admins[normalizeEmail(id.Email)]; ok {
		u.Role = roleAdmin
	}
	if c != nil {
		u.FirstName = c.FirstName
		u.LastName = c.LastName
		u.Company = c.Company
		u.Phone = c.Phone
		u.Plan = c.Plan
	}
	return u
}

func (s *SessionService) expire(ctx context.Context, userID string) {
	if err := s.store.Clear(ctx, userID); err != nil {
		logger.From(ctx).Warn("session clear failed", "user_id", userID, "error", err)
	}
	s.record(ctx, audit.EventTypeSessionExpired, userID, "session torn down")
}

func (s *SessionService) record(ctx context.Context, typ audit.EventType, userID, msg string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, typ, userID, userID, "", msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "error", err)
	}
}

func asAuthError(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return NewError(CodeGeneric, err)
}
