package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/fivetwenty-io/portal-client/internal/auth"
	"github.com/fivetwenty-io/portal-client/internal/constants"
	internalhttp "github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// restRoot is the REST root of the fake portal.
const restRoot = "/arcgis/sharing/rest/"

type recordedRequest struct {
	Method string
	Path   string
	Form   url.Values
	Files  map[string]string
}

// fakePortal is a TLS test server answering portal paths with canned JSON
// and recording every request.
type fakePortal struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()

	fake := &fakePortal{routes: map[string]http.HandlerFunc{}}
	fake.server = httptest.NewTLSServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.server.Close)

	return fake
}

func (f *fakePortal) serve(writer http.ResponseWriter, request *http.Request) {
	_ = request.ParseMultipartForm(1 << 20)

	recorded := recordedRequest{
		Method: request.Method,
		Path:   request.URL.Path,
		Form:   request.Form,
		Files:  map[string]string{},
	}

	if request.MultipartForm != nil {
		for field, headers := range request.MultipartForm.File {
			recorded.Files[field] = headers[0].Filename
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, recorded)
	handler, ok := f.routes[request.URL.Path]
	f.mu.Unlock()

	if !ok {
		writeJSON(writer, errorBody(400, "Item does not exist or is inaccessible."))

		return
	}

	handler(writer, request)
}

// url returns the portal root as a client would be configured with it.
func (f *fakePortal) url() string {
	return f.server.URL + "/arcgis"
}

// handle answers the REST path with body.
func (f *fakePortal) handle(path string, body interface{}) {
	f.handleAbsolute(restRoot+path, body)
}

// handleAbsolute answers the full URL path with body.
func (f *fakePortal) handleAbsolute(path string, body interface{}) {
	f.handleFunc(path, func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, body)
	})
}

func (f *fakePortal) handleFunc(path string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes[path] = handler
}

// paths lists the requested paths relative to the REST root.
func (f *fakePortal) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, len(f.requests))
	for i, request := range f.requests {
		paths[i] = strings.TrimPrefix(request.Path, restRoot)
	}

	return paths
}

// last returns the most recent request to the REST path.
func (f *fakePortal) last(path string) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Path == restRoot+path {
			return f.requests[i]
		}
	}

	return recordedRequest{}
}

func writeJSON(writer http.ResponseWriter, value interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(value)
}

func errorBody(code int, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": message, "details": []string{}},
	}
}

func success() map[string]interface{} {
	return map[string]interface{}{"success": true}
}

// page returns a paged response holding n results named after their
// position, starting at start.
func page(key string, start, n, total int) map[string]interface{} {
	results := make([]interface{}, n)
	for i := range results {
		results[i] = map[string]interface{}{"id": "id-" + strconv.Itoa(start+i), "title": "title"}
	}

	nextStart := start + n
	if nextStart > total {
		nextStart = -1
	}

	return map[string]interface{}{key: results, "num": n, "nextStart": nextStart, "total": total}
}

// NewTestClient creates a client for the fake portal without probing it.
// The session is empty until loginAs is called.
func NewTestClient(fake *fakePortal, opts ...internalhttp.Option) *Client {
	session := auth.NewSession(nil, "test.example.com")

	opts = append([]internalhttp.Option{
		internalhttp.WithHTTPClient(fake.server.Client()),
		internalhttp.WithReferer("test.example.com"),
	}, opts...)

	httpClient := internalhttp.NewClient(fake.url()+"/"+constants.RESTPath, session, opts...)
	session.SetIssuer(httpClient)

	client := &Client{
		httpClient: httpClient,
		session:    session,
		portalURL:  fake.url() + "/",
		referer:    "test.example.com",
	}

	client.initializeResourceClients(portal.NewLocationHints(nil, 0))

	return client
}

// loginAs adopts a session for username with token "tok-1".
func loginAs(client *Client, username string) {
	client.session.Adopt(portal.SessionState{Username: username, Password: "secret", Token: "tok-1"})
	client.loggedInUser = portal.Object{"username": username}
}
