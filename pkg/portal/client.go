package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// SessionClient manages the token held by a client.
type SessionClient interface {
	Login(ctx context.Context, username, password string, expiration int) (string, error)
	Logout()
	IsLoggedIn() bool
	LoggedInUser() Object
	GenerateToken(ctx context.Context, username, password string, expiration int) (string, error)
	Session() SessionState
}

// InfoClient exposes portal-wide properties and derived capabilities.
// The Is* helpers read the memoized properties and do not issue requests.
type InfoClient interface {
	Properties(ctx context.Context, force bool) (Object, error)
	Version(ctx context.Context, force bool) (string, error)
	IsAllSSL() bool
	IsMultitenant() bool
	IsArcGISOnline() bool
	IsSubscription() bool
	IsOrg() bool
}

// ResourceClients provides access to the resource clients.
type ResourceClients interface {
	Groups() GroupsClient
	Users() UsersClient
	Items() ItemsClient
	Folders() FoldersClient
}

// Client is a connection to a single portal.
//
// A Client is not safe for concurrent use: the session token is replaced
// without locking when it expires mid-call. Use one Client per goroutine or
// synchronize access externally.
type Client interface {
	ResourceClients
	InfoClient
	SessionClient
}

// SessionPersister stores a session so that a later process can adopt it
// through Config.Session.
type SessionPersister interface {
	SaveSession(portalURL string, state SessionState) error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a portal.Client.
//
// # Authentication
//
// When both Username and Password are set, portalclient.New logs in right
// away by requesting a token from the generateToken endpoint. The password is
// kept in memory so that an expired token (error code 498) can be renewed
// once per call without involving the caller. Session adopts an existing
// token instead; its Password, when present, allows the same renewal.
//
// # Timeouts, retries, and TLS
//
// Per-request timeouts should generally be controlled via the context passed
// to client methods. HTTPTimeout bounds every exchange when set. Transient
// failures (5xx, 429, connection errors) are retried RetryMax times; a token
// expiry is never retried by that mechanism. KeyFile and CertFile configure a
// TLS client certificate and must be given together.
type Config struct {
	// Required fields
	// URL: portal root, e.g. "https://www.example.com/arcgis". It is
	// normalized and "sharing/rest/" is appended.
	URL string

	// Authentication options
	// Username: account used to generate a token.
	Username string
	// Password: password for Username.
	Password string
	// Expiration: requested token lifetime in minutes. Defaults to 60.
	Expiration int
	// Referer: sent as the Referer header and as the token's client binding.
	// Defaults to the reverse DNS name of the local host.
	Referer string
	// Session: an existing session to adopt instead of logging in.
	Session *SessionState

	// TLS and network
	// KeyFile and CertFile: PEM files of a TLS client certificate.
	KeyFile  string
	CertFile string
	// ProxyHost and ProxyPort: HTTP proxy for every request.
	ProxyHost string
	ProxyPort int

	// Optional configurations
	// WorkDir: directory where remote uploads are downloaded before being
	// attached. Defaults to os.TempDir().
	WorkDir string
	// Fs: filesystem used for uploads and downloads. Defaults to the OS.
	Fs afero.Fs
	// HTTPTimeout: optional timeout applied to each HTTP exchange.
	HTTPTimeout time.Duration
	// RetryMax: maximum number of retries for transient failures.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration
	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger held by the client.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// HTTPClient: optional net/http client used for every exchange, e.g. one
	// trusting a private certificate authority.
	HTTPClient *http.Client
	// Interceptors: optional hooks run around every HTTP exchange.
	Interceptors *InterceptorChain
	// Cache: stores the last known location of items. Defaults to an
	// in-memory cache.
	Cache Cache
	// SkipInit: when true, New does not probe the portal version and
	// properties. IsAllSSL then reports true and the other Is* helpers false
	// until Properties is
	// called.
	SkipInit bool
}

// Validate reports every inconsistency in the configuration at once.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigRequired
	}

	var result *multierror.Error

	if c.URL == "" {
		result = multierror.Append(result, ErrURLRequired)
	}

	if c.Username != "" && c.Password == "" && c.Session == nil {
		result = multierror.Append(result, ErrPasswordRequired)
	}

	if c.Password != "" && c.Username == "" {
		result = multierror.Append(result, ErrUsernameRequired)
	}

	if c.KeyFile != "" && c.CertFile == "" {
		result = multierror.Append(result, ErrCertFileRequired)
	}

	if c.CertFile != "" && c.KeyFile == "" {
		result = multierror.Append(result, ErrKeyFileRequired)
	}

	if c.ProxyHost != "" && c.ProxyPort == 0 {
		result = multierror.Append(result, ErrProxyPortRequired)
	}

	if c.Expiration < 0 {
		result = multierror.Append(result, ErrInvalidExpiration)
	}

	return result.ErrorOrNil()
}
