package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// Static errors for err113 compliance.
var (
	ErrNoStatePersister = errors.New("no session persister configured")
)

// StatePersister stores a session so that a later process can adopt it.
type StatePersister = portal.SessionPersister

// PersistingSession wraps Session and saves the session every time a new
// token is obtained, including renewals after an expired token.
type PersistingSession struct {
	*Session

	persister StatePersister
	portalURL string
	logger    portal.Logger
}

// NewPersistingSession creates a persisting session for portalURL.
func NewPersistingSession(session *Session, persister StatePersister, portalURL string, logger portal.Logger) *PersistingSession {
	return &PersistingSession{
		Session:   session,
		persister: persister,
		portalURL: portalURL,
		logger:    logger,
	}
}

// Login logs in and persists the new session.
func (p *PersistingSession) Login(ctx context.Context, username, password string, expiration int) (string, error) {
	token, err := p.Session.Login(ctx, username, password, expiration)
	if err != nil {
		return "", err
	}

	p.persist()

	return token, nil
}

// Relogin renews the token and persists it.
func (p *PersistingSession) Relogin(ctx context.Context, expiration int) (string, error) {
	if p.Session.username == "" || p.Session.password == "" {
		return "", portal.ErrNoCredentials
	}

	if expiration <= 0 {
		expiration = p.Session.expiration
	}

	return p.Login(ctx, p.Session.username, p.Session.password, expiration)
}

// Persist saves the current session.
func (p *PersistingSession) Persist() error {
	if p.persister == nil {
		return ErrNoStatePersister
	}

	err := p.persister.SaveSession(p.portalURL, p.State())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (p *PersistingSession) persist() {
	err := p.Persist()
	if err != nil && p.logger != nil {
		// The token is still usable for this process.
		p.logger.Warn("failed to persist session", map[string]interface{}{
			"portal": p.portalURL,
			"error":  err.Error(),
		})
	}
}
