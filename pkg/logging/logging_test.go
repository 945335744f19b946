package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/portal-client/pkg/logging"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

var (
	_ portal.Logger = (*logging.Zerolog)(nil)
	_ portal.Logger = (*logging.HCLog)(nil)
)

func TestZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.NewZerolog(zerolog.New(&buf))
	logger.Warn("token renewed", map[string]interface{}{"op": "POST community/groups", "attempt": 1})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "token renewed", line["message"])
	assert.Equal(t, "POST community/groups", line["op"])
	assert.InDelta(t, 1, line["attempt"], 0)
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	t.Run("json respects the level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		logger := logging.NewConsole(&buf, "warn", true)
		logger.Info("hidden", nil)
		logger.Error("shown", map[string]interface{}{"code": 400})

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"message":"shown"`)
		assert.Contains(t, lines[0], `"code":400`)
	})

	t.Run("console", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		logger := logging.NewConsole(&buf, "debug", false)
		logger.Debug("HTTP Request", map[string]interface{}{"method": "POST"})

		assert.Contains(t, buf.String(), "HTTP Request")
		assert.Contains(t, buf.String(), "method=POST")
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{name: "debug", level: "DEBUG", want: zerolog.DebugLevel},
		{name: "warn", level: "warn", want: zerolog.WarnLevel},
		{name: "error", level: "error", want: zerolog.ErrorLevel},
		{name: "unknown", level: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, logging.ParseLevel(tt.level))
		})
	}
}

func TestHCLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.NewHCLog(hclog.New(&hclog.LoggerOptions{
		Name:       "portal",
		Level:      hclog.Debug,
		Output:     &buf,
		JSONFormat: true,
	}))
	logger.Error("request failed", map[string]interface{}{"status": 500, "url": "https://example.com"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["@level"])
	assert.Equal(t, "request failed", line["@message"])
	assert.Equal(t, "https://example.com", line["url"])
}

func TestNop(t *testing.T) {
	t.Parallel()

	logger := logging.Nop()
	assert.NotPanics(t, func() {
		logger.Debug("x", nil)
		logger.Info("x", nil)
		logger.Warn("x", map[string]interface{}{"a": 1})
		logger.Error("x", nil)
	})
}
