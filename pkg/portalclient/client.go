package portalclient

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/auth"
	"github.com/fivetwenty-io/portal-client/internal/client"
	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/urlnorm"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// New creates a portal client. The configuration is validated, the referer
// defaults to the reverse DNS name of the local host, and the client logs in
// when credentials are given.
func New(ctx context.Context, config *portal.Config) (portal.Client, error) {
	err := prepare(ctx, config)
	if err != nil {
		return nil, err
	}

	client, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// NewWithPersister creates a portal client whose session is saved through
// persister every time a token is obtained, including automatic renewals.
// Sessions are keyed by the normalized portal URL.
func NewWithPersister(ctx context.Context, config *portal.Config, persister portal.SessionPersister) (portal.Client, error) {
	err := prepare(ctx, config)
	if err != nil {
		return nil, err
	}

	session := auth.NewPersistingSession(
		auth.NewSession(nil, config.Referer),
		persister,
		SessionKey(config.URL),
		config.Logger,
	)

	client, err := client.NewWithSession(ctx, config, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// NewAnonymous creates a client for a portal without logging in.
func NewAnonymous(ctx context.Context, url string) (portal.Client, error) {
	return New(ctx, &portal.Config{
		URL: url,
	})
}

// NewWithPassword creates a client logged in with username and password.
func NewWithPassword(ctx context.Context, url, username, password string) (portal.Client, error) {
	return New(ctx, &portal.Config{
		URL:      url,
		Username: username,
		Password: password,
	})
}

// NewWithSession creates a client adopting a previously exported session.
func NewWithSession(ctx context.Context, url string, state portal.SessionState) (portal.Client, error) {
	return New(ctx, &portal.Config{
		URL:     url,
		Session: &state,
	})
}

// SessionKey is the key under which sessions for url are persisted. Keys
// always use https, the scheme every session starts on, so spellings that
// differ only in scheme share one session.
func SessionKey(url string) string {
	key := urlnorm.Normalize(url)
	if rest, ok := strings.CutPrefix(key, "http://"); ok {
		key = "https://" + rest
	}

	if !strings.HasSuffix(key, "/") {
		key += "/"
	}

	return key
}

func prepare(ctx context.Context, config *portal.Config) error {
	err := config.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Referer == "" {
		config.Referer = DefaultReferer(ctx)
	}

	return nil
}

// DefaultReferer returns the fully qualified name of the local host, falling
// back to its short name and then to "localhost".
func DefaultReferer(ctx context.Context) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ShortHTTPTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return host
	}

	for _, addr := range addrs {
		names, err := net.DefaultResolver.LookupAddr(ctx, addr)
		if err == nil && len(names) > 0 {
			return strings.TrimSuffix(names[0], ".")
		}
	}

	return host
}
