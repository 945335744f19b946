package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"slices"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/auth"
	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/internal/urlnorm"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/spf13/afero"
)

// Session holds the token of a Client. *auth.Session and
// *auth.PersistingSession implement it.
type Session interface {
	http.TokenSource
	Login(ctx context.Context, username, password string, expiration int) (string, error)
	IsAuthenticated() bool
	Username() string
	State() portal.SessionState
	Adopt(state portal.SessionState)
	SetIssuer(issuer auth.Issuer)
}

// Client implements the portal.Client interface.
type Client struct {
	httpClient   *http.Client
	session      Session
	portalURL    string
	referer      string
	logger       portal.Logger
	properties   portal.Object
	version      string
	pre162       bool
	pre21        bool
	loggedInUser portal.Object

	// Resource clients
	groups  *GroupsClient
	users   *UsersClient
	items   *ItemsClient
	folders *FoldersClient
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *portal.Config) ([]http.Option, error) {
	// Every request goes over https until the portal reports otherwise.
	httpOpts := []http.Option{http.WithAllTLS(true)}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.Referer != "" {
		httpOpts = append(httpOpts, http.WithReferer(config.Referer))
	}

	if config.HTTPClient != nil {
		httpOpts = append(httpOpts, http.WithHTTPClient(config.HTTPClient))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.ProxyHost != "" {
		httpOpts = append(httpOpts, http.WithProxy(config.ProxyHost, config.ProxyPort))
	}

	if config.Fs != nil {
		httpOpts = append(httpOpts, http.WithFs(config.Fs))
	}

	if config.WorkDir != "" {
		httpOpts = append(httpOpts, http.WithWorkDir(config.WorkDir))
	}

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, http.WithInterceptors(config.Interceptors))
	}

	if config.CertFile != "" {
		cert, err := loadClientCertificate(config)
		if err != nil {
			return nil, err
		}

		httpOpts = append(httpOpts, http.WithTLSClientCert(cert))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts, nil
}

func loadClientCertificate(config *portal.Config) (tls.Certificate, error) {
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	certPEM, err := afero.ReadFile(fs, config.CertFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading cert file: %w", err)
	}

	keyPEM, err := afero.ReadFile(fs, config.KeyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading key file: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading client certificate: %w", err)
	}

	return cert, nil
}

// New creates a portal client with an in-memory session.
func New(ctx context.Context, config *portal.Config) (*Client, error) {
	if config == nil {
		return nil, portal.ErrConfigRequired
	}

	return NewWithSession(ctx, config, auth.NewSession(nil, config.Referer))
}

// NewWithSession creates a portal client around session. The session is
// bound to the client's transport as its token issuer. Unless config adopts
// a session, the client logs in when credentials are given. The version and
// properties are then probed unless config.SkipInit is set.
func NewWithSession(ctx context.Context, config *portal.Config, session Session) (*Client, error) {
	if config == nil {
		return nil, portal.ErrConfigRequired
	}

	if config.URL == "" {
		return nil, portal.ErrURLRequired
	}

	portalURL := urlnorm.Normalize(config.URL)
	if !strings.HasSuffix(portalURL, "/") {
		portalURL += "/"
	}

	httpOpts, err := createHTTPClientOptions(config)
	if err != nil {
		return nil, err
	}

	httpClient := http.NewClient(portalURL+constants.RESTPath, session, httpOpts...)
	session.SetIssuer(httpClient)

	client := &Client{
		httpClient: httpClient,
		session:    session,
		portalURL:  portalURL,
		referer:    config.Referer,
		logger:     config.Logger,
	}

	cache := config.Cache
	if cache == nil {
		cache = portal.NewMemoryCache(portal.DefaultCacheSize)
	}

	client.initializeResourceClients(portal.NewLocationHints(cache, 0))

	err = client.start(ctx, config)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) start(ctx context.Context, config *portal.Config) error {
	switch {
	case config.Session != nil:
		c.session.Adopt(*config.Session)

		if c.session.IsAuthenticated() && c.session.Username() != "" && !config.SkipInit {
			err := c.loadLoggedInUser(ctx, c.session.Username())
			if err != nil {
				return err
			}
		}
	case config.Username != "":
		_, err := c.Login(ctx, config.Username, config.Password, config.Expiration)
		if err != nil {
			return err
		}
	}

	if config.SkipInit {
		return nil
	}

	_, err := c.Version(ctx, true)
	if err != nil {
		return err
	}

	_, err = c.Properties(ctx, true)
	if err != nil {
		return err
	}

	return nil
}

func (c *Client) initializeResourceClients(hints *portal.LocationHints) {
	c.folders = NewFoldersClient(c.httpClient)
	c.groups = NewGroupsClient(c.httpClient, c)
	c.items = NewItemsClient(c.httpClient, c, c.folders, hints)
	c.users = NewUsersClient(c.httpClient, c, c.groups, c.items)
}

// HTTPClient returns the transport shared by the resource clients.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// URL returns the normalized portal root, terminated by a slash.
func (c *Client) URL() string {
	return c.portalURL
}

// Properties implements portal.InfoClient.Properties.
func (c *Client) Properties(ctx context.Context, force bool) (portal.Object, error) {
	if c.properties == nil || force {
		path := constants.PortalSelfPath
		if c.pre162 {
			path = constants.AccountSelfPath
		}

		resp, err := c.httpClient.Post(ctx, path, portal.NewForm(), nil, &http.RequestOptions{TLS: true})
		if err != nil {
			return nil, fmt.Errorf("getting portal properties: %w", err)
		}

		if body := resp.Object(); body != nil {
			c.properties = body
			c.httpClient.SetAllTLS(c.IsAllSSL())
		}
	}

	return c.properties.Clone(), nil
}

// Version implements portal.InfoClient.Version.
func (c *Client) Version(ctx context.Context, force bool) (string, error) {
	if c.version != "" && !force {
		return c.version, nil
	}

	resp, err := c.httpClient.Post(ctx, "", portal.NewForm(), nil, nil)
	if err != nil {
		if portal.IsInvalidToken(err) {
			return "", fmt.Errorf("getting portal version: %w", err)
		}

		resp, err = c.legacyVersion(ctx, err)
		if err != nil {
			return "", err
		}
	}

	version := portal.Stringify(resp.Object()["currentVersion"])

	if !c.pre21 && slices.Contains(constants.PreV21Versions, version) {
		c.warn("Portal is pre-2.1; some features are not supported", map[string]interface{}{"version": version})
		c.pre21 = true
	}

	c.version = version

	return c.version, nil
}

// legacyVersion retries the version probe on the pre-1.6.2 REST root and
// switches the transport to it when it answers.
func (c *Client) legacyVersion(ctx context.Context, cause error) (*portal.Response, error) {
	legacyURL := c.portalURL + constants.LegacyRESTPath

	resp, err := c.httpClient.Post(ctx, legacyURL, portal.NewForm(), nil, &http.RequestOptions{TLS: true})
	if err != nil {
		return nil, fmt.Errorf("getting portal version: %w", cause)
	}

	c.warn("Portal is pre-1.6.2; some features may not work", map[string]interface{}{"url": legacyURL})

	c.pre162 = true
	c.pre21 = true
	c.httpClient.SetBaseURL(legacyURL)

	return resp, nil
}

// IsAllSSL implements portal.InfoClient.IsAllSSL. It reports true until the
// properties are known.
func (c *Client) IsAllSSL() bool {
	if c.properties == nil {
		return true
	}

	return c.properties.GetBool("allSSL")
}

// IsMultitenant implements portal.InfoClient.IsMultitenant.
func (c *Client) IsMultitenant() bool {
	return c.properties.GetString("portalMode") == constants.PortalModeMultitenant
}

// IsArcGISOnline implements portal.InfoClient.IsArcGISOnline.
func (c *Client) IsArcGISOnline() bool {
	return c.properties.GetString("portalName") == constants.PublicServiceName && c.IsMultitenant()
}

// IsSubscription implements portal.InfoClient.IsSubscription.
func (c *Client) IsSubscription() bool {
	return c.properties.GetString("urlKey") != ""
}

// IsOrg implements portal.InfoClient.IsOrg.
func (c *Client) IsOrg() bool {
	return c.accountID() != ""
}

// IsPre21 reports whether the portal is older than 2.1.
func (c *Client) IsPre21() bool {
	return c.pre21
}

// Login implements portal.SessionClient.Login.
func (c *Client) Login(ctx context.Context, username, password string, expiration int) (string, error) {
	token, err := c.session.Login(ctx, username, password, expiration)
	if err != nil {
		return "", fmt.Errorf("logging in: %w", err)
	}

	err = c.loadLoggedInUser(ctx, username)
	if err != nil {
		return "", err
	}

	return token, nil
}

// loadLoggedInUser stores the profile of username. A profile the portal
// refuses to return leaves the logged-in user unset.
func (c *Client) loadLoggedInUser(ctx context.Context, username string) error {
	user, err := c.users.Get(ctx, username)
	if err != nil {
		if portal.IsApplicationError(err) {
			c.warn("Could not read the logged-in user", map[string]interface{}{"username": username})
			c.loggedInUser = nil

			return nil
		}

		return fmt.Errorf("getting logged-in user: %w", err)
	}

	c.loggedInUser = user

	return nil
}

// Logout implements portal.SessionClient.Logout.
func (c *Client) Logout() {
	c.session.Logout()
	c.loggedInUser = nil
}

// IsLoggedIn implements portal.SessionClient.IsLoggedIn.
func (c *Client) IsLoggedIn() bool {
	return c.session.IsAuthenticated()
}

// LoggedInUser implements portal.SessionClient.LoggedInUser.
func (c *Client) LoggedInUser() portal.Object {
	return c.loggedInUser.Clone()
}

// GenerateToken implements portal.SessionClient.GenerateToken. The token is
// returned without being stored.
func (c *Client) GenerateToken(ctx context.Context, username, password string, expiration int) (string, error) {
	token, err := auth.NewSession(c.httpClient, c.referer).Login(ctx, username, password, expiration)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	return token, nil
}

// Session implements portal.SessionClient.Session.
func (c *Client) Session() portal.SessionState {
	return c.session.State()
}

// Resource client accessors

// Groups implements portal.Client.Groups.
func (c *Client) Groups() portal.GroupsClient {
	return c.groups
}

// Users implements portal.Client.Users.
func (c *Client) Users() portal.UsersClient {
	return c.users
}

// Items implements portal.Client.Items.
func (c *Client) Items() portal.ItemsClient {
	return c.items
}

// Folders implements portal.Client.Folders.
func (c *Client) Folders() portal.FoldersClient {
	return c.folders
}

func (c *Client) accountID() string {
	return c.properties.GetString("id")
}

func (c *Client) isPre21() bool {
	return c.pre21
}

// loggedInUsername prefers the stored profile and falls back to the session
// user when the profile was not loaded.
func (c *Client) loggedInUsername() string {
	if name := c.loggedInUser.GetString("username"); name != "" {
		return name
	}

	if c.session.IsAuthenticated() {
		return c.session.Username()
	}

	return ""
}

func (c *Client) warn(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}
