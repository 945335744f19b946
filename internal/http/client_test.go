package http_test

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/portal-client/internal/auth"
	portalhttp "github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger for testing.
type MockLogger struct {
	mu   sync.Mutex
	logs []map[string]interface{}
}

func (l *MockLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logs = append(l.logs, map[string]interface{}{"level": level, "msg": msg, "fields": fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.record("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.record("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.record("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.record("error", msg, fields) }

func (l *MockLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string

	for _, entry := range l.logs {
		if entry["level"] == level {
			out = append(out, entry["msg"].(string))
		}
	}

	return out
}

func writeJSON(writer http.ResponseWriter, value interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(value)
}

func errorBody(code int, message string, details ...string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": message, "details": details},
	}
}

// newAuthenticatedClient wires a session to a client the way the portal
// client does, with an adopted token "tok-1".
func newAuthenticatedClient(server *httptest.Server, opts ...portalhttp.Option) (*portalhttp.Client, *auth.Session) {
	session := auth.NewSession(nil, "test-referer")
	opts = append([]portalhttp.Option{
		portalhttp.WithHTTPClient(server.Client()),
		portalhttp.WithReferer("test-referer"),
	}, opts...)
	client := portalhttp.NewClient(server.URL+"/sharing/rest", session, opts...)
	session.SetIssuer(client)
	session.Adopt(portal.SessionState{Username: "jdoe", Password: "secret", Token: "tok-1", Expiration: 60})

	return client, session
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Get(t *testing.T) {
	t.Parallel()

	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/sharing/rest/community/users/jdoe", request.URL.Path)
			assert.Equal(t, http.MethodGet, request.Method)
			assert.Equal(t, "json", request.URL.Query().Get("f"))
			assert.Equal(t, "test-referer", request.Header.Get("Referer"))
			assert.Equal(t, "portal-client/1.0.0", request.Header.Get("User-Agent"))
			assert.Equal(t, "gzip", request.Header.Get("Accept-Encoding"))

			writeJSON(writer, map[string]string{"username": "jdoe", "fullName": "Jane Doe"})
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL+"/sharing/rest/", nil, portalhttp.WithReferer("test-referer"))

		resp, err := client.Get(context.Background(), "community/users/jdoe?f=json", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "Jane Doe", resp.Object().GetString("fullName"))
	})

	t.Run("token replaces existing query parameter", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, []string{"tok-1"}, request.URL.Query()["token"])
			assert.Equal(t, "10", request.URL.Query().Get("num"))
			writeJSON(writer, map[string]interface{}{"total": 0})
		}))
		defer server.Close()

		client, _ := newAuthenticatedClient(server)

		_, err := client.Get(context.Background(), "search?num=10&token=stale", nil)
		require.NoError(t, err)
	})

	t.Run("absolute URL is used as is", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/other/path", request.URL.Path)
			writeJSON(writer, map[string]string{"ok": "yes"})
		}))
		defer server.Close()

		client := portalhttp.NewClient("http://unused.invalid/sharing/rest/", nil)

		resp, err := client.Get(context.Background(), server.URL+"/other/path", nil)
		require.NoError(t, err)
		assert.Equal(t, "yes", resp.Object().GetString("ok"))
	})

	t.Run("raw body is passed through", func(t *testing.T) {
		t.Parallel()

		image := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "image/png")
			_, _ = writer.Write(image)
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		resp, err := client.Get(context.Background(), "community/groups/g1/info/thumb.png", &portalhttp.RequestOptions{Raw: true})
		require.NoError(t, err)
		assert.Equal(t, image, resp.Raw)
		assert.Nil(t, resp.Value)

		resp, err = client.Get(context.Background(), "community/groups/g1/info/thumb.png", nil)
		require.NoError(t, err, "unparseable GET bodies are not an error")
		assert.Equal(t, image, resp.Raw)
		assert.Nil(t, resp.Object())
	})

	t.Run("gzip response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "gzip", request.Header.Get("Accept-Encoding"))

			var buf bytes.Buffer

			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write([]byte(`{"currentVersion":"2.1"}`))
			_ = zw.Close()

			writer.Header().Set("Content-Encoding", "gzip")
			_, _ = writer.Write(buf.Bytes())
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		resp, err := client.Get(context.Background(), "", nil)
		require.NoError(t, err)
		assert.Equal(t, "2.1", resp.Object().GetString("currentVersion"))
	})

	t.Run("no compression requested", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "identity", request.Header.Get("Accept-Encoding"))
			writeJSON(writer, map[string]string{})
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		_, err := client.Get(context.Background(), "x", &portalhttp.RequestOptions{NoCompress: true})
		require.NoError(t, err)
	})

	t.Run("all TLS upgrades http URLs", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, map[string]bool{"secure": request.TLS != nil})
		}))
		defer server.Close()

		plainURL := strings.Replace(server.URL, "https://", "http://", 1)
		client := portalhttp.NewClient(plainURL, nil, portalhttp.WithHTTPClient(server.Client()), portalhttp.WithAllTLS(true))

		resp, err := client.Get(context.Background(), "portals/self", nil)
		require.NoError(t, err)
		assert.True(t, resp.Object().GetBool("secure"))
		assert.True(t, client.AllTLS())
	})

	t.Run("with debug logging", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, map[string]string{"result": "ok"})
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithLogger(logger), portalhttp.WithDebug(true))

		_, err := client.Get(context.Background(), "portals/self", nil)
		require.NoError(t, err)

		// Should have logged request and response
		assert.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Request", logger.logs[0]["msg"])
		assert.Equal(t, "HTTP Response", logger.logs[1]["msg"])
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Post(t *testing.T) {
	t.Parallel()

	t.Run("form body with token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", request.Header.Get("Content-Type"))
			assert.NoError(t, request.ParseForm())
			assert.Equal(t, "json", request.PostForm.Get("f"))
			assert.Equal(t, "tok-1", request.PostForm.Get("token"))
			assert.Equal(t, "roads, rail", request.PostForm.Get("tags"))
			assert.Empty(t, request.URL.Query().Get("token"))

			writeJSON(writer, map[string]interface{}{"success": true, "group": map[string]string{"id": "g1"}})
		}))
		defer server.Close()

		client, _ := newAuthenticatedClient(server)
		form := portal.NewForm().Set("tags", []string{"roads", "rail"})

		resp, err := client.Post(context.Background(), "community/createGroup", form, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "g1", resp.Object().GetObject("group").GetString("id"))
		assert.NotContains(t, form, "token", "caller's form is not modified")
	})

	t.Run("multipart body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.True(t, strings.HasPrefix(request.Header.Get("Content-Type"), "multipart/form-data; boundary="))
			assert.NoError(t, request.ParseMultipartForm(1<<20))
			assert.Equal(t, "Test", request.FormValue("title"))
			assert.Equal(t, "tok-1", request.FormValue("token"))

			file, header, err := request.FormFile("thumbnail")
			if !assert.NoError(t, err) {
				return
			}

			defer func() { _ = file.Close() }()

			data, _ := io.ReadAll(file)
			assert.Equal(t, "a.png", header.Filename)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
			assert.Equal(t, "\x89PNG", string(data))

			writeJSON(writer, map[string]bool{"success": true})
		}))
		defer server.Close()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/tmp/a.png", []byte("\x89PNG"), 0o600))

		client, _ := newAuthenticatedClient(server, portalhttp.WithFs(fs))

		resp, err := client.Post(context.Background(), "community/groups/g1/update",
			portal.NewForm().Set("title", "Test"),
			[]portal.Upload{{Field: "thumbnail", Source: "/tmp/a.png", FileName: "a.png"}}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Object().GetBool("success"))
	})

	t.Run("unparseable response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_, _ = writer.Write([]byte("<html>maintenance</html>"))
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		resp, err := client.Post(context.Background(), "search", portal.NewForm(), nil, nil)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, portal.KindParse, portal.KindOf(err))
		assert.True(t, portal.IsFatal(err))
	})

	t.Run("application error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, errorBody(400, "Unable to create group.", "Group title already exists.", "Use another title."))
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithLogger(logger))

		resp, err := client.Post(context.Background(), "community/createGroup", portal.NewForm(), nil, nil)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, portal.IsApplicationError(err))
		assert.False(t, portal.IsFatal(err))
		assert.Equal(t, 400, portal.APIErrorCode(err))
		assert.Equal(t,
			[]string{"Unable to create group.", "Group title already exists.", "Use another title."},
			logger.messages("error"))
	})

	t.Run("http error status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		_, err := client.Post(context.Background(), "search", nil, nil, nil)

		httpErr := &portal.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
		assert.Equal(t, portal.KindTransport, portal.KindOf(err))
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_TokenRenewal(t *testing.T) {
	t.Parallel()

	t.Run("expired token is renewed once", func(t *testing.T) {
		t.Parallel()

		var resourceCalls, tokenCalls atomic.Int32

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.NoError(t, request.ParseForm())

			if strings.HasSuffix(request.URL.Path, "/generateToken") {
				tokenCalls.Add(1)
				assert.Equal(t, "jdoe", request.PostForm.Get("username"))
				assert.Equal(t, "secret", request.PostForm.Get("password"))
				assert.Equal(t, "referer", request.PostForm.Get("client"))
				assert.Equal(t, "test-referer", request.PostForm.Get("referer"))
				assert.Empty(t, request.PostForm.Get("token"))
				writeJSON(writer, map[string]interface{}{"token": "tok-2", "expires": 1893456000000})

				return
			}

			resourceCalls.Add(1)

			if request.Form.Get("token") == "tok-1" {
				writeJSON(writer, errorBody(portal.TokenExpiredCode, "Invalid token."))

				return
			}

			assert.Equal(t, "tok-2", request.Form.Get("token"))
			writeJSON(writer, map[string]string{"id": "g1"})
		}))
		defer server.Close()

		logger := &MockLogger{}
		client, session := newAuthenticatedClient(server, portalhttp.WithLogger(logger))

		resp, err := client.Get(context.Background(), "community/groups/g1", nil)
		require.NoError(t, err)
		assert.Equal(t, "g1", resp.Object().GetString("id"))
		assert.Equal(t, int32(2), resourceCalls.Load())
		assert.Equal(t, int32(1), tokenCalls.Load())
		assert.Equal(t, "tok-2", session.Token())
		assert.Equal(t, []string{"Token expired, logging in again"}, logger.messages("warn"))
	})

	t.Run("second expiry is fatal", func(t *testing.T) {
		t.Parallel()

		var resourceCalls, tokenCalls atomic.Int32

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if strings.HasSuffix(request.URL.Path, "/generateToken") {
				tokenCalls.Add(1)
				writeJSON(writer, map[string]string{"token": "tok-2"})

				return
			}

			resourceCalls.Add(1)
			writeJSON(writer, errorBody(portal.TokenExpiredCode, "Invalid token."))
		}))
		defer server.Close()

		client, _ := newAuthenticatedClient(server)

		resp, err := client.Post(context.Background(), "community/groups/g1/delete", portal.NewForm(), nil, nil)
		require.Error(t, err)
		assert.Nil(t, resp)
		require.ErrorIs(t, err, portal.ErrInvalidToken)
		assert.True(t, portal.IsInvalidToken(err))
		assert.True(t, portal.IsFatal(err))
		assert.Equal(t, int32(2), resourceCalls.Load())
		assert.Equal(t, int32(1), tokenCalls.Load())
	})

	t.Run("498 status is treated as expiry", func(t *testing.T) {
		t.Parallel()

		var resourceCalls atomic.Int32

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if strings.HasSuffix(request.URL.Path, "/generateToken") {
				writeJSON(writer, map[string]string{"token": "tok-2"})

				return
			}

			if resourceCalls.Add(1) == 1 {
				writer.WriteHeader(portal.TokenExpiredCode)

				return
			}

			writeJSON(writer, map[string]bool{"success": true})
		}))
		defer server.Close()

		client, _ := newAuthenticatedClient(server)

		resp, err := client.Get(context.Background(), "portals/self", nil)
		require.NoError(t, err)
		assert.True(t, resp.Object().GetBool("success"))
	})

	t.Run("failed relogin", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if strings.HasSuffix(request.URL.Path, "/generateToken") {
				writeJSON(writer, errorBody(400, "Invalid username or password."))

				return
			}

			writeJSON(writer, errorBody(portal.TokenExpiredCode, "Invalid token."))
		}))
		defer server.Close()

		client, session := newAuthenticatedClient(server)

		_, err := client.Get(context.Background(), "portals/self", nil)
		require.ErrorIs(t, err, portal.ErrInvalidToken)
		assert.True(t, portal.IsInvalidToken(err))
		assert.False(t, session.IsAuthenticated())
	})

	t.Run("anonymous client", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, errorBody(portal.TokenExpiredCode, "Invalid token."))
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		_, err := client.Get(context.Background(), "portals/self", nil)
		assert.True(t, portal.IsInvalidToken(err))
	})
}

// One logical call with an expired token and an initial login results in
// exactly two requests to the resource.
func TestClient_LoginThenCall(t *testing.T) {
	t.Parallel()

	var requests []string

	var mu sync.Mutex

	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.NoError(t, request.ParseForm())

		mu.Lock()
		requests = append(requests, request.URL.Path)
		tokenCount := 0

		for _, path := range requests {
			if strings.HasSuffix(path, "/generateToken") {
				tokenCount++
			}
		}
		mu.Unlock()

		switch {
		case strings.HasSuffix(request.URL.Path, "/generateToken"):
			writeJSON(writer, map[string]string{"token": "tok-" + string(rune('0'+tokenCount))})
		case request.Form.Get("token") == "tok-1":
			writeJSON(writer, errorBody(portal.TokenExpiredCode, "Invalid token."))
		default:
			assert.Equal(t, "tok-2", request.Form.Get("token"))
			writeJSON(writer, map[string]interface{}{"results": []interface{}{}, "num": 0, "nextStart": -1})
		}
	}))
	defer server.Close()

	session := auth.NewSession(nil, "test-referer")
	client := portalhttp.NewClient(server.URL+"/sharing/rest/", session, portalhttp.WithHTTPClient(server.Client()))
	session.SetIssuer(client)

	token, err := session.Login(context.Background(), "jdoe", "secret", 0)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	_, err = client.Post(context.Background(), "search", portal.NewForm().Set("q", "roads"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/sharing/rest/generateToken",
		"/sharing/rest/search",
		"/sharing/rest/generateToken",
		"/sharing/rest/search",
	}, requests)
}

func TestClient_Download(t *testing.T) {
	t.Parallel()

	t.Run("streams body to file", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/zip")
			_, _ = writer.Write([]byte("PK\x03\x04data"))
		}))
		defer server.Close()

		fs := afero.NewMemMapFs()
		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithFs(fs))

		path, err := client.Download(context.Background(), "content/items/i1/data", "/out/data.zip", nil)
		require.NoError(t, err)
		assert.Equal(t, "/out/data.zip", path)

		data, err := afero.ReadFile(fs, "/out/data.zip")
		require.NoError(t, err)
		assert.Equal(t, "PK\x03\x04data", string(data))
	})

	t.Run("expired token is renewed", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.NoError(t, request.ParseForm())

			switch {
			case strings.HasSuffix(request.URL.Path, "/generateToken"):
				writeJSON(writer, map[string]string{"token": "tok-2"})
			case request.Form.Get("token") == "tok-1":
				writeJSON(writer, errorBody(portal.TokenExpiredCode, "Invalid token."))
			default:
				_, _ = writer.Write([]byte("csv,data"))
			}
		}))
		defer server.Close()

		fs := afero.NewMemMapFs()
		client, _ := newAuthenticatedClient(server, portalhttp.WithFs(fs))

		_, err := client.Download(context.Background(), "content/items/i1/data", "/out/items.csv", nil)
		require.NoError(t, err)

		data, err := afero.ReadFile(fs, "/out/items.csv")
		require.NoError(t, err)
		assert.Equal(t, "csv,data", string(data))
	})

	t.Run("application error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, errorBody(400, "Item does not exist or is inaccessible."))
		}))
		defer server.Close()

		fs := afero.NewMemMapFs()
		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithFs(fs))

		_, err := client.Download(context.Background(), "content/items/missing/data", "/out/x", nil)
		require.True(t, portal.IsApplicationError(err))

		exists, _ := afero.Exists(fs, "/out/x")
		assert.False(t, exists)
	})
}

func TestClient_Interceptors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "abc", request.Header.Get("X-Request-Source"))
		writeJSON(writer, map[string]bool{"success": true})
	}))
	defer server.Close()

	collector := portal.NewMetricsCollector()
	chain := portal.NewInterceptorChain()
	chain.AddRequestInterceptor(portal.HeaderInterceptor(map[string]string{"X-Request-Source": "abc"}))
	chain.AddRequestInterceptor(portal.MetricsRequestInterceptor(collector))
	chain.AddResponseInterceptor(portal.MetricsResponseInterceptor(collector))

	client := portalhttp.NewClient(server.URL, nil, portalhttp.WithInterceptors(chain))

	for range 3 {
		_, err := client.Post(context.Background(), "search", portal.NewForm(), nil, nil)
		require.NoError(t, err)
	}

	metrics := collector.GetMetrics("POST search")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(3), metrics.TotalRequests)
	assert.Equal(t, int64(0), metrics.TotalErrors)
}

var errBlocked = errors.New("blocked")

func TestClient_InterceptorRejects(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	chain := portal.NewInterceptorChain()
	chain.AddRequestInterceptor(func(ctx context.Context, req *portal.Request) error { return errBlocked })

	client := portalhttp.NewClient(server.URL, nil, portalhttp.WithInterceptors(chain))

	_, err := client.Get(context.Background(), "portals/self", nil)
	require.ErrorIs(t, err, errBlocked)
	assert.Equal(t, int32(0), calls.Load())
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_RetryLogic(t *testing.T) {
	t.Parallel()
	t.Run("retries on 5xx errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 3 {
				writer.WriteHeader(http.StatusInternalServerError)
			} else {
				writeJSON(writer, map[string]string{"currentVersion": "2.1"})
			}
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("retries on rate limiting", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 2 {
				writer.WriteHeader(http.StatusTooManyRequests)
			} else {
				writeJSON(writer, map[string]string{})
			}
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("does not retry on client errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)

			writer.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil, portalhttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		_, err := client.Get(context.Background(), "/test", nil)
		require.Error(t, err)

		httpErr := &portal.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 400, httpErr.StatusCode)
		assert.Equal(t, int32(1), attempts.Load()) // Should not retry
	})

	t.Run("does not retry without configuration", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)
			writer.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := portalhttp.NewClient(server.URL, nil)

		_, err := client.Get(context.Background(), "/test", nil)
		assert.Equal(t, portal.KindTransport, portal.KindOf(err))
		assert.Equal(t, int32(1), attempts.Load())
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(request *http.Request) (*http.Response, error) {
	return f(request)
}

func TestClient_TransportOptions(t *testing.T) {
	t.Parallel()

	t.Run("caller client is not modified", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, map[string]interface{}{"ok": true})
		}))
		defer server.Close()

		httpClient := server.Client()
		transport := httpClient.Transport.(*http.Transport)

		client := portalhttp.NewClient(server.URL, nil,
			portalhttp.WithHTTPClient(httpClient),
			portalhttp.WithTimeout(5*time.Second),
			portalhttp.WithTLSClientCert(tls.Certificate{}),
		)

		assert.Zero(t, httpClient.Timeout)
		assert.Same(t, transport, httpClient.Transport)
		assert.Empty(t, transport.TLSClientConfig.Certificates)

		resp, err := client.Get(context.Background(), "/info", nil)
		require.NoError(t, err)
		assert.True(t, resp.Object().GetBool("ok"))
	})

	t.Run("custom transport warns about ignored options", func(t *testing.T) {
		t.Parallel()

		logger := &MockLogger{}

		var calls atomic.Int32

		httpClient := &http.Client{Transport: roundTripperFunc(func(request *http.Request) (*http.Response, error) {
			calls.Add(1)

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
				Request:    request,
			}, nil
		})}

		client := portalhttp.NewClient("https://portal.example.com/sharing/rest", nil,
			portalhttp.WithLogger(logger),
			portalhttp.WithHTTPClient(httpClient),
			portalhttp.WithProxy("proxy.example.com", 8080),
		)

		assert.Contains(t, logger.messages("warn"), "proxy and client certificate options ignored by custom transport")

		_, err := client.Get(context.Background(), "/info", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
