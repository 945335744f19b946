// Package http is the transport shared by every portal call. It attaches
// the session token, encodes form and multipart bodies, decodes JSON
// responses and renews an expired token once per call.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/multipart"
	"github.com/fivetwenty-io/portal-client/internal/urlnorm"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// TokenSource provides the token attached to requests and renews it when
// the portal rejects it.
type TokenSource interface {
	Token() string
	Logout()
	Relogin(ctx context.Context, expiration int) (string, error)
}

// RequestOptions adjusts a single call.
type RequestOptions struct {
	// TLS upgrades an http URL to https for this call.
	TLS bool
	// NoCompress asks the server not to compress the response.
	NoCompress bool
	// Raw returns the GET body without parsing it.
	Raw bool
}

// Client performs portal requests.
//
// Client is not safe for concurrent use when it renews tokens, because the
// TokenSource is updated without locking.
type Client struct {
	baseURL      string
	tokens       TokenSource
	httpClient   *retryablehttp.Client
	logger       portal.Logger
	debug        bool
	userAgent    string
	referer      string
	allTLS       bool
	timeout      time.Duration
	certificates []tls.Certificate
	proxyURL     *url.URL
	fs           afero.Fs
	workDir      string
	interceptors *portal.InterceptorChain
	materializer *multipart.Materializer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger portal.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets how transient failures (5xx, 429, connection
// errors) are retried. A token expiry is never retried here.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithReferer sets the Referer header sent with every request.
func WithReferer(referer string) Option {
	return func(c *Client) {
		c.referer = referer
	}
}

// WithTimeout bounds every HTTP exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTLSClientCert presents cert to servers that request a client
// certificate.
func WithTLSClientCert(cert tls.Certificate) Option {
	return func(c *Client) {
		c.certificates = append(c.certificates, cert)
	}
}

// WithProxy routes every request through the HTTP proxy at host:port.
func WithProxy(host string, port int) Option {
	return func(c *Client) {
		c.proxyURL = &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	}
}

// WithAllTLS upgrades every request to https.
func WithAllTLS(allTLS bool) Option {
	return func(c *Client) {
		c.allTLS = allTLS
	}
}

// WithInterceptors runs chain around every HTTP exchange.
func WithInterceptors(chain *portal.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithFs sets the filesystem used for uploads and downloads.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithHTTPClient replaces the underlying net/http client, e.g. to trust a
// test server certificate.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient = httpClient
	}
}

// WithWorkDir sets where remote uploads are downloaded.
func WithWorkDir(dir string) Option {
	return func(c *Client) {
		c.workDir = dir
	}
}

// NewClient creates a client for the portal REST root baseURL. Relative
// request paths are resolved against it. tokens may be nil for anonymous
// access.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/",
		tokens:     tokens,
		httpClient: httpClient,
		userAgent:  constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.logger != nil {
		httpClient.Logger = &leveledLogger{logger: client.logger}
	}

	if client.fs == nil {
		client.fs = afero.NewOsFs()
	}

	if client.workDir == "" {
		client.workDir = os.TempDir()
	}

	client.configureTransport()

	client.materializer = &multipart.Materializer{
		Fs:         client.fs,
		WorkDir:    client.workDir,
		HTTPClient: httpClient.StandardClient(),
	}

	return client
}

// configureTransport applies timeout, proxy and client certificates to a
// copy of the net/http client, leaving one passed with WithHTTPClient as it
// was.
func (c *Client) configureTransport() {
	needsTransport := c.proxyURL != nil || len(c.certificates) > 0
	if c.timeout <= 0 && !needsTransport {
		return
	}

	configured := *c.httpClient.HTTPClient

	if c.timeout > 0 {
		configured.Timeout = c.timeout
	}

	if needsTransport {
		roundTripper := configured.Transport
		if roundTripper == nil {
			roundTripper = http.DefaultTransport
		}

		transport, ok := roundTripper.(*http.Transport)
		if ok {
			configured.Transport = c.tunedTransport(transport.Clone())
		} else {
			c.logWarn("proxy and client certificate options ignored by custom transport", map[string]interface{}{
				"transport": fmt.Sprintf("%T", roundTripper),
			})
		}
	}

	c.httpClient.HTTPClient = &configured
}

func (c *Client) tunedTransport(transport *http.Transport) *http.Transport {
	if c.proxyURL != nil {
		transport.Proxy = http.ProxyURL(c.proxyURL)
	}

	if len(c.certificates) > 0 {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		transport.TLSClientConfig.Certificates = c.certificates
	}

	return transport
}

// BaseURL returns the REST root, terminated by a slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetBaseURL moves the REST root, e.g. to the legacy root of an old portal.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/") + "/"
}

// SetAllTLS switches https-only mode on or off.
func (c *Client) SetAllTLS(allTLS bool) {
	c.allTLS = allTLS
}

// AllTLS reports whether every request is sent over https.
func (c *Client) AllTLS() bool {
	return c.allTLS
}

// StandardClient returns a net/http client sharing the transport settings.
func (c *Client) StandardClient() *http.Client {
	return c.httpClient.StandardClient()
}

type call struct {
	method    string
	path      string
	form      portal.Form
	uploads   []portal.Upload
	opts      RequestOptions
	anonymous bool
}

func (c *call) op() string {
	return c.method + " " + c.path
}

// Get issues a GET request. A body that is not JSON is returned in Raw with
// a nil Value.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*portal.Response, error) {
	return c.execute(ctx, &call{method: http.MethodGet, path: path, opts: optionsOrDefault(opts)}, false)
}

// Post issues a POST request. The form is copied before the token is
// added; uploads switch the body to multipart/form-data.
func (c *Client) Post(ctx context.Context, path string, form portal.Form, uploads []portal.Upload, opts *RequestOptions) (*portal.Response, error) {
	return c.execute(ctx, &call{
		method:  http.MethodPost,
		path:    path,
		form:    form,
		uploads: uploads,
		opts:    optionsOrDefault(opts),
	}, false)
}

// GenerateToken posts a token request over https without a token and
// without renewal.
func (c *Client) GenerateToken(ctx context.Context, form portal.Form) (portal.Object, error) {
	resp, err := c.execute(ctx, &call{
		method:    http.MethodPost,
		path:      constants.GenerateTokenPath,
		form:      form,
		opts:      RequestOptions{TLS: true},
		anonymous: true,
	}, true)
	if err != nil {
		return nil, err
	}

	return resp.Object(), nil
}

// Download writes the body of a GET to destination and returns its path.
// An expired token is renewed once, as for Get.
func (c *Client) Download(ctx context.Context, path, destination string, opts *RequestOptions) (string, error) {
	request := &call{method: http.MethodGet, path: path, opts: optionsOrDefault(opts)}

	return c.download(ctx, request, destination, false)
}

func (c *Client) download(ctx context.Context, request *call, destination string, retry bool) (string, error) {
	resp, view, err := c.send(ctx, request, retry)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	reader, err := decodedBody(resp)
	if err != nil {
		return "", portal.NewError(portal.KindTransport, request.op(), err)
	}

	if resp.StatusCode >= http.StatusBadRequest || strings.Contains(resp.Header.Get("Content-Type"), "json") {
		body, readErr := io.ReadAll(reader)
		if readErr != nil {
			return "", portal.NewError(portal.KindTransport, request.op(), readErr)
		}

		c.afterResponse(ctx, view, resp, body)

		value, parseErr := parseJSON(body)
		if parseErr == nil || resp.StatusCode >= http.StatusBadRequest {
			retryCall, failure := c.checkFailure(ctx, request, resp, value, retry)
			if retryCall {
				return c.download(ctx, request, destination, true)
			}

			if failure != nil {
				return "", failure
			}
		}

		return destination, c.writeFile(destination, bytes.NewReader(body))
	}

	c.afterResponse(ctx, view, resp, nil)

	err = c.writeFile(destination, reader)
	if err != nil {
		return "", err
	}

	return destination, nil
}

func (c *Client) writeFile(destination string, reader io.Reader) error {
	err := c.fs.MkdirAll(filepath.Dir(destination), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destination, err)
	}

	file, err := c.fs.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destination, err)
	}

	_, err = io.Copy(file, reader)
	closeErr := file.Close()

	if err != nil {
		return fmt.Errorf("failed to write %s: %w", destination, err)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", destination, closeErr)
	}

	return nil
}

func (c *Client) execute(ctx context.Context, request *call, retry bool) (*portal.Response, error) {
	resp, view, err := c.send(ctx, request, retry)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	reader, err := decodedBody(resp)
	if err != nil {
		return nil, portal.NewError(portal.KindTransport, request.op(), err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, portal.NewError(portal.KindTransport, request.op(), fmt.Errorf("failed to read response body: %w", err))
	}

	c.afterResponse(ctx, view, resp, body)

	if request.opts.Raw && request.method == http.MethodGet &&
		resp.StatusCode < http.StatusBadRequest && resp.StatusCode != portal.TokenExpiredCode {
		return &portal.Response{StatusCode: resp.StatusCode, Raw: body}, nil
	}

	value, parseErr := parseJSON(body)

	retryCall, failure := c.checkFailure(ctx, request, resp, value, retry)
	if retryCall {
		return c.execute(ctx, request, true)
	}

	if failure != nil {
		return nil, failure
	}

	if parseErr != nil {
		if request.method == http.MethodGet {
			return &portal.Response{StatusCode: resp.StatusCode, Raw: body}, nil
		}

		return nil, portal.NewError(portal.KindParse, request.op(), parseErr)
	}

	return &portal.Response{StatusCode: resp.StatusCode, Raw: body, Value: value}, nil
}

// checkFailure classifies a response. It reports whether the call should be
// re-issued after a successful re-login, or the error to return.
func (c *Client) checkFailure(ctx context.Context, request *call, resp *http.Response, value interface{}, retry bool) (bool, error) {
	var apiErr *portal.APIError

	if body, ok := value.(map[string]interface{}); ok {
		apiErr = portal.ParseAPIError(portal.Object(body))
	}

	tokenExpired := resp.StatusCode == portal.TokenExpiredCode ||
		(apiErr != nil && apiErr.Code == portal.TokenExpiredCode)

	switch {
	case tokenExpired && !request.anonymous:
		return c.renewToken(ctx, request, retry)
	case apiErr != nil:
		c.logAPIError(request, apiErr)

		return false, apiErr
	case resp.StatusCode >= http.StatusBadRequest:
		return false, &portal.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        portal.RedactToken(resp.Request.URL.String()),
		}
	default:
		return false, nil
	}
}

func (c *Client) renewToken(ctx context.Context, request *call, retry bool) (bool, error) {
	if retry || c.tokens == nil {
		c.logError("Token rejected after renewal", map[string]interface{}{"op": request.op()})

		return false, portal.NewError(portal.KindInvalidToken, request.op(), portal.ErrInvalidToken)
	}

	c.logWarn("Token expired, logging in again", map[string]interface{}{"op": request.op()})

	c.tokens.Logout()

	_, err := c.tokens.Relogin(ctx, 0)
	if err != nil {
		return false, portal.NewError(portal.KindInvalidToken, request.op(), fmt.Errorf("%w: %w", portal.ErrInvalidToken, err))
	}

	return true, nil
}

// send builds and performs the HTTP exchange. The caller closes the body.
func (c *Client) send(ctx context.Context, request *call, retry bool) (*http.Response, *portal.Request, error) {
	target := c.resolve(request.path, request.opts.TLS)

	token := ""
	if c.tokens != nil && !request.anonymous {
		token = c.tokens.Token()
	}

	var (
		body        []byte
		contentType string
		err         error
	)

	if request.method == http.MethodGet {
		target, err = withToken(target, token)
		if err != nil {
			return nil, nil, portal.NewError(portal.KindTransport, request.op(), err)
		}
	} else {
		body, contentType, err = c.encodeForm(ctx, request, token)
		if err != nil {
			return nil, nil, err
		}
	}

	headers := make(http.Header)
	headers.Set("User-Agent", c.userAgent)

	if c.referer != "" {
		headers.Set("Referer", c.referer)
	}

	if request.opts.NoCompress {
		headers.Set("Accept-Encoding", "identity")
	} else {
		headers.Set("Accept-Encoding", "gzip")
	}

	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	view := &portal.Request{
		Method:  request.method,
		Path:    request.path,
		URL:     target,
		Headers: headers,
		Retry:   retry,
	}

	if c.interceptors != nil {
		err = c.interceptors.ExecuteRequestInterceptors(ctx, view)
		if err != nil {
			return nil, nil, portal.NewError(portal.KindPrecondition, request.op(), err)
		}
	}

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, request.method, target, rawBody)
	if err != nil {
		return nil, nil, portal.NewError(portal.KindTransport, request.op(), fmt.Errorf("failed to create request: %w", err))
	}

	for key, values := range view.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if c.debug && c.logger != nil {
		if view.Metadata == nil {
			view.Metadata = make(map[string]interface{})
		}

		view.Metadata["request_id"] = uuid.NewString()

		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     request.method,
			"url":        portal.RedactToken(target),
			"retry":      retry,
			"multipart":  len(request.uploads) > 0,
			"request_id": view.Metadata["request_id"],
		})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.interceptors != nil {
			_ = c.interceptors.ExecuteResponseInterceptors(ctx, view, &portal.InterceptedResponse{Error: err})
		}

		return nil, nil, portal.NewError(portal.KindTransport, request.op(), fmt.Errorf("request failed: %w", err))
	}

	return resp, view, nil
}

func (c *Client) afterResponse(ctx context.Context, view *portal.Request, resp *http.Response, body []byte) {
	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": resp.StatusCode,
			"url":         portal.RedactToken(view.URL),
			"body_size":   len(body),
			"request_id":  view.Metadata["request_id"],
		})
	}

	if c.interceptors != nil {
		_ = c.interceptors.ExecuteResponseInterceptors(ctx, view, &portal.InterceptedResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
		})
	}
}

func (c *Client) encodeForm(ctx context.Context, request *call, token string) ([]byte, string, error) {
	form := request.form.Clone()
	if form == nil {
		form = portal.NewForm()
	}

	if _, ok := form["f"]; !ok {
		form.Set("f", portal.OutputFormat)
	}

	if token != "" {
		form.Set("token", token)
	}

	if len(request.uploads) == 0 {
		return []byte(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	uploads, err := c.materializer.MaterializeAll(ctx, request.uploads)
	if err != nil {
		return nil, "", portal.NewError(portal.KindTransport, request.op(), err)
	}

	encoded, err := multipart.Encode(c.fs, form, uploads)
	if err != nil {
		return nil, "", portal.NewError(portal.KindPrecondition, request.op(), err)
	}

	return encoded.Data, encoded.ContentType, nil
}

// resolve joins path to the base URL unless it is absolute and upgrades
// the scheme when https is required.
func (c *Client) resolve(path string, forceTLS bool) string {
	target := path
	if !urlnorm.HasScheme(path) {
		target = c.baseURL + strings.TrimPrefix(path, "/")
	}

	if (forceTLS || c.allTLS) && strings.HasPrefix(target, "http://") {
		target = "https://" + strings.TrimPrefix(target, "http://")
	}

	return target
}

func (c *Client) logAPIError(request *call, apiErr *portal.APIError) {
	fields := map[string]interface{}{"op": request.op(), "code": apiErr.Code}

	c.logError(apiErr.Message, fields)

	for _, detail := range apiErr.Details {
		c.logError(detail, fields)
	}
}

func (c *Client) logError(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, fields)
	}
}

func (c *Client) logWarn(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}

// withToken sets the token query parameter, replacing any present.
func withToken(target, token string) (string, error) {
	if token == "" {
		return target, nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func decodedBody(resp *http.Response) (io.Reader, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return resp.Body, nil
	}

	reader, err := gzip.NewReader(resp.Body)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return bytes.NewReader(nil), nil
		}

		return nil, fmt.Errorf("failed to open gzip body: %w", err)
	}

	return reader, nil
}

func parseJSON(body []byte) (interface{}, error) {
	var value interface{}

	err := json.Unmarshal(body, &value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return value, nil
}

func optionsOrDefault(opts *RequestOptions) RequestOptions {
	if opts == nil {
		return RequestOptions{}
	}

	return *opts
}
