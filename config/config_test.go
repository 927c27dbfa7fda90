package config_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eak1mov/go-tileview/cache"
	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/config"
	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/provider"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	c, err := config.Default()
	require.NoError(t, err)

	want := &config.Config{
		Provider:           provider.DefaultName,
		CacheBackend:       "fs",
		CachePath:          "tilecache",
		MemoryCacheEntries: 1000,
		FetchConcurrency:   compositor.DefaultConcurrency,
		RequestTimeout:     30 * time.Second,
		ZoomCalibration:    mercator.ZoomCalibration,
		MissingTiles:       "fallback",
		TileMargin:         1,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Default() mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, c.Validate())
}

func TestParse(t *testing.T) {
	data := []byte(`
provider: CartodbDark
cache_backend: sqlite
cache_path: /var/cache/tiles.db
tile_margin: 0
min_event_interval: 250ms
missing_tiles: ignore
strict_sync: true
`)
	c, err := config.Parse(data, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "CartodbDark", c.Provider)
	assert.Equal(t, "sqlite", c.CacheBackend)
	assert.Equal(t, "/var/cache/tiles.db", c.CachePath)
	assert.Equal(t, 0, c.TileMargin, "explicit zero survives defaults")
	assert.Equal(t, 250*time.Millisecond, c.MinEventInterval)
	assert.True(t, c.StrictSync)
	assert.Equal(t, 10, c.FetchConcurrency)

	missing, err := c.Missing()
	require.NoError(t, err)
	assert.Equal(t, compositor.Ignore, missing)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown backend", "cache_backend: redis"},
		{"unknown policy", "missing_tiles: retry"},
		{"zero concurrency", "fetch_concurrency: 0"},
		{"negative margin", "tile_margin: -1"},
		{"missing path", "cache_path: ''"},
		{"malformed yaml", "provider: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.data), noEnv)
			require.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestMemoryBackendNeedsNoPath(t *testing.T) {
	c, err := config.Parse([]byte("cache_backend: memory\ncache_path: ''"), noEnv)
	require.NoError(t, err)

	store, err := c.OpenCache(nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, store)
	require.NoError(t, store.(io.Closer).Close())
}

func TestEnvOverrides(t *testing.T) {
	assert.Equal(t, "TILEVIEW_FETCH_CONCURRENCY", config.EnvName("fetch_concurrency"))

	env := envMap(map[string]string{
		"TILEVIEW_PROVIDER":          "OpenStreetMap",
		"TILEVIEW_FETCH_CONCURRENCY": "4",
		"TILEVIEW_REQUEST_TIMEOUT":   "5s",
		"TILEVIEW_USER_AGENT":        "tileview-test/1.0",
	})
	c, err := config.Parse([]byte("provider: CartodbLight\nfetch_concurrency: 8"), env)
	require.NoError(t, err)

	assert.Equal(t, "OpenStreetMap", c.Provider)
	assert.Equal(t, 4, c.FetchConcurrency)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, "tileview-test/1.0", c.UserAgent)

	_, err = config.Parse(nil, envMap(map[string]string{"TILEVIEW_TILE_MARGIN": "many"}))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tileview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_path: "+filepath.Join(dir, "tiles")+"\n"), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tiles"), c.CachePath)

	_, err = config.Load(filepath.Join(dir, "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWiring(t *testing.T) {
	c, err := config.Parse([]byte("provider: EsriWorldImagery"), noEnv)
	require.NoError(t, err)

	p, err := c.LookupProvider(provider.Builtin())
	require.NoError(t, err)
	assert.Equal(t, provider.EsriWorldImagery(), p)

	client := c.NewClient(nil, nil)
	require.NotNil(t, client)

	opts, err := c.ViewOptions(client, nil)
	require.NoError(t, err)
	assert.Len(t, opts, 8)

	c.Provider = "NoSuchMap"
	_, err = c.LookupProvider(provider.Builtin())
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}
