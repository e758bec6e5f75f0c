package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/storage"
)

func newTestCache(t *testing.T) *storage.Cache {
	t.Helper()
	cache, err := storage.NewCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.EnsureDataDirectory())
	return cache
}

func writeArtifact(t *testing.T, cache *storage.Cache, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cache.Dir(), name), []byte(content), 0o644))
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestCacheHandler_GetCacheEntry(t *testing.T) {
	cache := newTestCache(t)
	writeArtifact(t, cache, "abc.dfpwm", "audio")
	writeArtifact(t, cache, "abc(992x536).32vid", "video!")

	srv := newTestServer(t, NewCacheHandler(cache, media.Dimensions{Width: 992, Height: 992}))

	t.Run("audio only", func(t *testing.T) {
		var entry CacheEntry
		resp := getJSON(t, srv.URL+"/api/v1/cache/abc", &entry)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "abc", entry.ID)
		assert.Equal(t, storage.Artifact{Name: "abc.dfpwm", Exists: true, Size: 5}, entry.Audio)
		assert.Nil(t, entry.Video)
	})

	t.Run("video dimensions are capped", func(t *testing.T) {
		var entry CacheEntry
		resp := getJSON(t, srv.URL+"/api/v1/cache/abc?width=1500&height=540", &entry)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.NotNil(t, entry.Video)
		require.NotNil(t, entry.Dimensions)
		assert.Equal(t, media.Dimensions{Width: 992, Height: 536}, *entry.Dimensions)
		assert.True(t, entry.Video.Exists)
		assert.Equal(t, int64(6), entry.Video.Size)
	})

	t.Run("missing identity", func(t *testing.T) {
		var entry CacheEntry
		resp := getJSON(t, srv.URL+"/api/v1/cache/nope?width=64&height=64", &entry)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.False(t, entry.Audio.Exists)
		require.NotNil(t, entry.Video)
		assert.False(t, entry.Video.Exists)
		assert.Equal(t, "nope(64x64).32vid", entry.Video.Name)
	})
}

func TestCacheHandler_ServeArtifact(t *testing.T) {
	cache := newTestCache(t)
	writeArtifact(t, cache, "abc.dfpwm", "audio-bytes")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(cache.Dir()), "secret"), []byte("x"), 0o644))

	srv := newTestServer(t, NewCacheHandler(cache, media.Dimensions{Width: 992, Height: 992}))

	t.Run("serves a cached artifact", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/data/abc.dfpwm")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "audio-bytes", string(body))
	})

	t.Run("missing artifact", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/data/none.dfpwm")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("escaping names are not found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/data/..%2Fsecret")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
