package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// Static errors for err113 compliance.
var (
	ErrNoIssuer = errors.New("no token issuer configured")
)

// Issuer posts a token request and returns the parsed response.
type Issuer interface {
	GenerateToken(ctx context.Context, form portal.Form) (portal.Object, error)
}

// Session holds the credentials and token of one connection.
//
// The token is present only after a successful Login and until Logout. The
// password is retained so that Relogin can renew an expired token.
//
// Session is not safe for concurrent use.
type Session struct {
	issuer     Issuer
	referer    string
	username   string
	password   string
	expiration int
	token      string
	expiresAt  time.Time
}

// NewSession creates an empty session. Tokens are bound to referer.
func NewSession(issuer Issuer, referer string) *Session {
	return &Session{
		issuer:     issuer,
		referer:    referer,
		expiration: portal.DefaultTokenExpiration,
	}
}

// SetIssuer replaces the token issuer.
func (s *Session) SetIssuer(issuer Issuer) {
	s.issuer = issuer
}

// Referer returns the referer tokens are bound to.
func (s *Session) Referer() string {
	return s.referer
}

// Login requests a token for username and stores it with the credentials.
// A non-positive expiration means the default lifetime. When the response
// carries no token the session is left unchanged and ErrNoToken is
// returned.
func (s *Session) Login(ctx context.Context, username, password string, expiration int) (string, error) {
	if s.issuer == nil {
		return "", ErrNoIssuer
	}

	if expiration <= 0 {
		expiration = portal.DefaultTokenExpiration
	}

	form := portal.NewForm().
		Set("username", username).
		Set("password", password).
		Set("client", "referer").
		Set("referer", s.referer).
		Set("expiration", expiration)

	resp, err := s.issuer.GenerateToken(ctx, form)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := resp.GetString("token")
	if token == "" {
		return "", portal.ErrNoToken
	}

	s.username = username
	s.password = password
	s.expiration = expiration
	s.token = token
	s.expiresAt = expiryTime(resp)

	return token, nil
}

// Relogin logs in again with the stored credentials. A non-positive
// expiration reuses the previous lifetime.
func (s *Session) Relogin(ctx context.Context, expiration int) (string, error) {
	if s.username == "" || s.password == "" {
		return "", portal.ErrNoCredentials
	}

	if expiration <= 0 {
		expiration = s.expiration
	}

	return s.Login(ctx, s.username, s.password, expiration)
}

// Logout drops the token. Credentials are kept for Relogin.
func (s *Session) Logout() {
	s.token = ""
	s.expiresAt = time.Time{}
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	return s.token != ""
}

// Token returns the current token, or "".
func (s *Session) Token() string {
	return s.token
}

// Username returns the user of the last successful login.
func (s *Session) Username() string {
	return s.username
}

// ExpiresAt returns the expiry reported with the token. It is informational;
// the portal signals expiry with error 498.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// State exports the session.
func (s *Session) State() portal.SessionState {
	return portal.SessionState{
		Username:   s.username,
		Password:   s.password,
		Token:      s.token,
		Expiration: s.expiration,
		ExpiresAt:  s.expiresAt,
	}
}

// Adopt replaces the session with state.
func (s *Session) Adopt(state portal.SessionState) {
	s.username = state.Username
	s.password = state.Password
	s.token = state.Token
	s.expiresAt = state.ExpiresAt

	s.expiration = state.Expiration
	if s.expiration <= 0 {
		s.expiration = portal.DefaultTokenExpiration
	}
}

// expiryTime reads the "expires" field, milliseconds since the epoch.
func expiryTime(resp portal.Object) time.Time {
	millis := resp.GetInt("expires")
	if millis <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(int64(millis))
}
