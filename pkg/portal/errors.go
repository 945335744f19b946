package portal

import (
	"errors"
	"fmt"
	"strings"
)

// TokenExpiredCode is the application error code the portal returns for an
// expired or invalid token.
const TokenExpiredCode = 498

// ErrorKind classifies failures returned by the client.
type ErrorKind int

const (
	// KindUnknown is used for errors that do not carry a kind.
	KindUnknown ErrorKind = iota
	// KindTransport covers DNS, connect, TLS and HTTP status failures.
	KindTransport
	// KindInvalidToken is returned when the token is rejected again after
	// the single automatic re-login.
	KindInvalidToken
	// KindApplication is an error object in an otherwise valid response.
	// It is recoverable: the call produced no result.
	KindApplication
	// KindParse is a POST response that is not valid JSON.
	KindParse
	// KindPrecondition is a request rejected locally before it was sent.
	KindPrecondition
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindInvalidToken:
		return "invalid_token"
	case KindApplication:
		return "application"
	case KindParse:
		return "parse"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Static errors for err113 compliance.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrNotLoggedIn         = errors.New("not logged in")
	ErrNoToken             = errors.New("token response did not contain a token")
	ErrNoCredentials       = errors.New("no stored credentials to log in with")
	ErrSignupNotSupported  = errors.New("signup is not supported on the multitenant public portal")
	ErrPreV21Unsupported   = errors.New("operation is not supported by portals older than 2.1")
	ErrUnknownScope        = errors.New("unknown search scope")
	ErrItemNotFound        = errors.New("item not found")
	ErrFolderNotFound      = errors.New("folder not found")
	ErrConfigRequired      = errors.New("config is required")
	ErrURLRequired         = errors.New("portal URL is required")
	ErrPasswordRequired    = errors.New("password is required when username is set")
	ErrUsernameRequired    = errors.New("username is required when password is set")
	ErrCertFileRequired    = errors.New("cert file is required when key file is set")
	ErrKeyFileRequired     = errors.New("key file is required when cert file is set")
	ErrProxyPortRequired   = errors.New("proxy port is required when proxy host is set")
	ErrInvalidExpiration   = errors.New("expiration must not be negative")
	ErrEmptyResponse       = errors.New("empty response")
	ErrUnexpectedResponse  = errors.New("unexpected response")
	ErrRequiredField       = errors.New("required field missing")
	ErrCacheDisabled       = errors.New("cache disabled")
	ErrCacheKeyNotFound    = errors.New("key not found")
	ErrCacheEntryExpired   = errors.New("entry expired")
	ErrNATSConfigRequired  = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCache    = errors.New("unsupported cache type")
	ErrKeyNotFoundAnyCache = errors.New("key not found in any cache")
)

// Error wraps a failure with its kind and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// APIError is the error object returned inside a portal JSON response:
//
//	{"error": {"code": 400, "message": "...", "details": ["..."]}}
type APIError struct {
	Code    int      `json:"code"              yaml:"code"`
	Message string   `json:"message"           yaml:"message"`
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
	}

	return fmt.Sprintf("%s (code: %d): %s", e.Message, e.Code, strings.Join(e.Details, "; "))
}

// Kind returns KindApplication, or KindInvalidToken for code 498.
func (e *APIError) Kind() ErrorKind {
	if e.Code == TokenExpiredCode {
		return KindInvalidToken
	}

	return KindApplication
}

// ParseAPIError extracts the error object from a parsed response body.
// It returns nil when the body carries no error with a code.
func ParseAPIError(body Object) *APIError {
	if body == nil {
		return nil
	}

	raw := body.GetObject("error")
	if raw == nil || !raw.Has("code") {
		return nil
	}

	apiErr := &APIError{
		Code:    raw.GetInt("code"),
		Message: raw.GetString("message"),
	}

	for _, detail := range raw.GetList("details") {
		apiErr.Details = append(apiErr.Details, Stringify(detail))
	}

	return apiErr
}

// HTTPError is an unsuccessful HTTP status that was not handled as a token
// expiry.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Body       []byte
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Status)
}

// Kind returns KindTransport.
func (e *HTTPError) Kind() ErrorKind {
	return KindTransport
}

type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of err, looking through wrapped errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var portalErr *Error
	if errors.As(err, &portalErr) && portalErr.Kind != KindUnknown {
		return portalErr.Kind
	}

	var withKind kinded
	if errors.As(err, &withKind) {
		return withKind.Kind()
	}

	switch {
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, ErrSignupNotSupported), errors.Is(err, ErrPreV21Unsupported), errors.Is(err, ErrUnknownScope),
		errors.Is(err, ErrRequiredField), errors.Is(err, ErrNotLoggedIn):
		return KindPrecondition
	default:
		return KindUnknown
	}
}

// IsApplicationError reports whether err is a recoverable application error.
func IsApplicationError(err error) bool {
	return KindOf(err) == KindApplication
}

// IsInvalidToken reports whether err means the token was rejected after the
// automatic re-login.
func IsInvalidToken(err error) bool {
	return KindOf(err) == KindInvalidToken
}

// IsPrecondition reports whether err is a local precondition rejection.
func IsPrecondition(err error) bool {
	return KindOf(err) == KindPrecondition
}

// IsFatal reports whether err is anything other than a recoverable
// application error.
func IsFatal(err error) bool {
	return err != nil && !IsApplicationError(err)
}

// APIErrorCode returns the application error code carried by err, or 0.
func APIErrorCode(err error) int {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return 0
}
