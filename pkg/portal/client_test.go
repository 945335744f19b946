package portal_test

import (
	"testing"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()

		var config *portal.Config
		require.ErrorIs(t, config.Validate(), portal.ErrConfigRequired)
	})

	t.Run("minimal config", func(t *testing.T) {
		t.Parallel()

		config := &portal.Config{URL: "https://www.example.com/arcgis"}
		require.NoError(t, config.Validate())
	})

	t.Run("adopted session without password", func(t *testing.T) {
		t.Parallel()

		config := &portal.Config{
			URL:      "https://www.example.com/arcgis",
			Username: "jdoe",
			Session:  &portal.SessionState{Username: "jdoe", Token: "t"},
		}
		require.NoError(t, config.Validate())
	})

	t.Run("reports every problem", func(t *testing.T) {
		t.Parallel()

		config := &portal.Config{
			Username:   "jdoe",
			KeyFile:    "client.key",
			ProxyHost:  "proxy.local",
			Expiration: -1,
		}

		err := config.Validate()
		require.Error(t, err)
		require.ErrorIs(t, err, portal.ErrURLRequired)
		require.ErrorIs(t, err, portal.ErrPasswordRequired)
		require.ErrorIs(t, err, portal.ErrCertFileRequired)
		require.ErrorIs(t, err, portal.ErrProxyPortRequired)
		require.ErrorIs(t, err, portal.ErrInvalidExpiration)
		assert.NotErrorIs(t, err, portal.ErrKeyFileRequired)
	})
}
