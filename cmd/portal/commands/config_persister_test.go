package commands

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

func newMemoryStore(t *testing.T) (*ConfigPersister, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	store := NewConfigPersister(fs, "/home/jdoe/.portal/config.yml")
	store.now = func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}

	return store, fs
}

func TestConfigPersister_Load(t *testing.T) {
	t.Parallel()

	t.Run("missing file is an empty configuration", func(t *testing.T) {
		t.Parallel()

		store, _ := newMemoryStore(t)

		config, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, config.Portals)
		assert.Empty(t, config.CurrentPortal)
	})

	t.Run("invalid YAML", func(t *testing.T) {
		t.Parallel()

		store, fs := newMemoryStore(t)
		require.NoError(t, afero.WriteFile(fs, store.Path(), []byte("portals: [\n"), 0o600))

		_, err := store.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		store, fs := newMemoryStore(t)

		config := &Config{Output: "json"}
		config.Portal("https://www.example.com/arcgis").Username = "jdoe"
		config.CurrentPortal = "https://www.example.com/arcgis/"

		require.NoError(t, store.Save(config))

		exists, err := afero.DirExists(fs, "/home/jdoe/.portal")
		require.NoError(t, err)
		assert.True(t, exists)

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "json", loaded.Output)
		require.NotNil(t, loaded.Lookup("www.example.com/arcgis"))
		assert.Equal(t, "jdoe", loaded.Lookup("www.example.com/arcgis").Username)
	})
}

func TestConfigPersister_SaveSession(t *testing.T) {
	t.Parallel()

	store, fs := newMemoryStore(t)
	expiresAt := time.Date(2026, 1, 2, 4, 4, 5, 0, time.UTC)

	err := store.SaveSession("https://www.example.com/arcgis/", portal.SessionState{
		Username:   "jdoe",
		Password:   "secret",
		Token:      "tok-1",
		Expiration: 60,
		ExpiresAt:  expiresAt,
	})
	require.NoError(t, err)

	config, err := store.Load()
	require.NoError(t, err)

	portalConfig := config.Lookup("https://www.example.com/arcgis")
	require.NotNil(t, portalConfig)
	assert.Equal(t, "jdoe", portalConfig.Username)
	assert.Equal(t, "tok-1", portalConfig.Token)
	assert.Equal(t, 60, portalConfig.Expiration)
	require.NotNil(t, portalConfig.ExpiresAt)
	assert.True(t, expiresAt.Equal(*portalConfig.ExpiresAt))
	require.NotNil(t, portalConfig.LastLogin)
	assert.Equal(t, 2026, portalConfig.LastLogin.Year())

	data, err := afero.ReadFile(fs, store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestConfigPersister_ClearSession(t *testing.T) {
	t.Parallel()

	t.Run("keeps the username", func(t *testing.T) {
		t.Parallel()

		store, _ := newMemoryStore(t)
		require.NoError(t, store.SaveSession("https://www.example.com/arcgis", portal.SessionState{
			Username:  "jdoe",
			Token:     "tok-1",
			ExpiresAt: time.Now().Add(time.Hour),
		}))

		require.NoError(t, store.ClearSession("https://www.example.com/arcgis"))

		config, err := store.Load()
		require.NoError(t, err)

		portalConfig := config.Lookup("https://www.example.com/arcgis")
		require.NotNil(t, portalConfig)
		assert.Equal(t, "jdoe", portalConfig.Username)
		assert.Empty(t, portalConfig.Token)
		assert.Nil(t, portalConfig.ExpiresAt)
	})

	t.Run("unknown portal", func(t *testing.T) {
		t.Parallel()

		store, _ := newMemoryStore(t)

		err := store.ClearSession("https://other.example.com/arcgis")
		require.ErrorIs(t, err, ErrPortalNotConfigured)
	})
}

func TestConfigPersister_Update(t *testing.T) {
	t.Parallel()

	store, fs := newMemoryStore(t)

	err := store.Update(func(config *Config) error {
		config.Output = "yaml"

		return ErrUnknownConfigKey
	})
	require.ErrorIs(t, err, ErrUnknownConfigKey)

	exists, err := afero.Exists(fs, store.Path())
	require.NoError(t, err)
	assert.False(t, exists)
}
