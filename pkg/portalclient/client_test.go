package portalclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/fivetwenty-io/portal-client/pkg/portalclient"
)

type memoryPersister struct {
	mu       sync.Mutex
	sessions map[string]portal.SessionState
	saves    int
}

func (p *memoryPersister) SaveSession(portalURL string, state portal.SessionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessions == nil {
		p.sessions = map[string]portal.SessionState{}
	}

	p.sessions[portalURL] = state
	p.saves++

	return nil
}

func newPortalServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_ = request.ParseForm()

		handler, ok := routes[request.URL.Path]
		if !ok {
			writeJSON(writer, map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": "not found"}})

			return
		}

		handler(writer, request)
	}))
	t.Cleanup(server.Close)

	return server
}

func writeJSON(writer http.ResponseWriter, value interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(value)
}

func respond(value interface{}) http.HandlerFunc {
	return func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, value)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates client with config", func(t *testing.T) {
		t.Parallel()

		server := newPortalServer(t, nil)

		client, err := portalclient.New(context.Background(), &portal.Config{
			URL:        server.URL + "/arcgis",
			Referer:    "test.example.com",
			SkipInit:   true,
			HTTPClient: server.Client(),
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.False(t, client.IsLoggedIn())
	})

	t.Run("reports every configuration problem", func(t *testing.T) {
		t.Parallel()

		_, err := portalclient.New(context.Background(), &portal.Config{
			Username: "jdoe",
			KeyFile:  "client.key",
		})
		require.Error(t, err)
		require.ErrorIs(t, err, portal.ErrURLRequired)
		require.ErrorIs(t, err, portal.ErrPasswordRequired)
		require.ErrorIs(t, err, portal.ErrCertFileRequired)
	})

	t.Run("requires a config", func(t *testing.T) {
		t.Parallel()

		_, err := portalclient.New(context.Background(), nil)
		require.ErrorIs(t, err, portal.ErrConfigRequired)
	})

	t.Run("defaults the referer", func(t *testing.T) {
		t.Parallel()

		server := newPortalServer(t, nil)
		config := &portal.Config{
			URL:        server.URL + "/arcgis",
			SkipInit:   true,
			HTTPClient: server.Client(),
		}

		_, err := portalclient.New(context.Background(), config)
		require.NoError(t, err)
		assert.NotEmpty(t, config.Referer)
	})
}

func TestNewWithPersister(t *testing.T) {
	t.Parallel()

	t.Run("saves the session after login", func(t *testing.T) {
		t.Parallel()

		server := newPortalServer(t, map[string]http.HandlerFunc{
			"/arcgis/sharing/rest/generateToken":        respond(map[string]interface{}{"token": "tok-1", "expires": 1893456000000}),
			"/arcgis/sharing/rest/community/users/jdoe": respond(map[string]interface{}{"username": "jdoe"}),
		})

		persister := &memoryPersister{}

		client, err := portalclient.NewWithPersister(context.Background(), &portal.Config{
			URL:        server.URL + "/arcgis",
			Username:   "jdoe",
			Password:   "secret",
			Referer:    "test.example.com",
			SkipInit:   true,
			HTTPClient: server.Client(),
		}, persister)
		require.NoError(t, err)
		assert.True(t, client.IsLoggedIn())

		state, ok := persister.sessions[portalclient.SessionKey(server.URL+"/arcgis")]
		require.True(t, ok)
		assert.Equal(t, "jdoe", state.Username)
		assert.Equal(t, "tok-1", state.Token)
		assert.Equal(t, 1, persister.saves)
	})

	t.Run("saves renewed tokens", func(t *testing.T) {
		t.Parallel()

		var (
			mu     sync.Mutex
			tokens int
		)

		server := newPortalServer(t, map[string]http.HandlerFunc{
			"/arcgis/sharing/rest/generateToken": func(writer http.ResponseWriter, _ *http.Request) {
				mu.Lock()
				tokens++
				mu.Unlock()

				writeJSON(writer, map[string]interface{}{"token": "tok-renewed"})
			},
			"/arcgis/sharing/rest/community/groups/g1": func(writer http.ResponseWriter, request *http.Request) {
				if request.Form.Get("token") != "tok-renewed" {
					writeJSON(writer, map[string]interface{}{"error": map[string]interface{}{"code": 498, "message": "Invalid token."}})

					return
				}

				writeJSON(writer, map[string]interface{}{"id": "g1"})
			},
		})

		persister := &memoryPersister{}

		client, err := portalclient.NewWithPersister(context.Background(), &portal.Config{
			URL:        server.URL + "/arcgis",
			Session:    &portal.SessionState{Username: "jdoe", Password: "secret", Token: "stale"},
			Referer:    "test.example.com",
			SkipInit:   true,
			HTTPClient: server.Client(),
		}, persister)
		require.NoError(t, err)

		group, err := client.Groups().Get(context.Background(), "g1")
		require.NoError(t, err)
		assert.Equal(t, "g1", group.GetString("id"))

		mu.Lock()
		assert.Equal(t, 1, tokens)
		mu.Unlock()
		assert.Equal(t, "tok-renewed", persister.sessions[portalclient.SessionKey(server.URL+"/arcgis")].Token)
	})
}

func TestSessionKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"no scheme", "www.example.com/arcgis"},
		{"http with default port", "HTTP://WWW.Example.com:80/arcgis"},
		{"https", "https://www.example.com/arcgis"},
		{"https with trailing slash", "https://www.example.com/arcgis/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, "https://www.example.com/arcgis/", portalclient.SessionKey(tt.input))
		})
	}

	assert.Equal(t, "https://www.example.com:7443/arcgis/", portalclient.SessionKey("www.example.com:7443/arcgis"))
}

func TestDefaultReferer(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, portalclient.DefaultReferer(context.Background()))
}
