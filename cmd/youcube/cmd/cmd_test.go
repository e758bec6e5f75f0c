package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/youcube/internal/config"
	"github.com/jmylchreest/youcube/internal/scheduler"
	"github.com/jmylchreest/youcube/internal/version"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestDumpConfig_RoundTrips(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Server.Port = 9123
	cfg.Extractor.JSRuntimes = []string{"deno"}

	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, cfg))
	assert.Contains(t, buf.String(), "# youcube configuration")

	var m map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &m))
	server := m["server"].(map[string]any)
	assert.Equal(t, 9123, server["port"])
	assert.Equal(t, "30s", server["read_timeout"])

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		versionJSON = false
	})

	require.NoError(t, rootCmd.Execute())

	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.GetInfo(), info)
}

func TestResolveCommand_Args(t *testing.T) {
	assert.Error(t, resolveCmd.Args(resolveCmd, nil))
	assert.NoError(t, resolveCmd.Args(resolveCmd, []string{"https://youtu.be/x"}))
}

func TestNewScheduler_CleansScratchAtStartup(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
	}{
		{name: "periodic", enabled: true},
		{name: "startup only", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			cfg.Storage.TempDir = t.TempDir()
			cfg.Cleanup.Enabled = tt.enabled

			stale := filepath.Join(cfg.Storage.TempDir, "youcube-stale")
			require.NoError(t, os.Mkdir(stale, 0o755))
			old := time.Now().Add(-2 * cfg.Storage.TempMaxAge)
			require.NoError(t, os.Chtimes(stale, old, old))

			sched, err := newScheduler(context.Background(), cfg, slog.New(slog.DiscardHandler))
			require.NoError(t, err)

			assert.NoDirExists(t, stale)
			if tt.enabled {
				entries := sched.Entries()
				require.Len(t, entries, 1)
				assert.Equal(t, scheduler.ScratchCleanupJob, entries[0].Name)
			} else {
				assert.Empty(t, sched.Entries())
			}
		})
	}
}

func TestNewApp_MissingBinariesAreRecorded(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Transcode.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg")

	a, err := newApp(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.DirExists(t, cfg.Storage.DataDir)
	require.Contains(t, a.binaries, "ffmpeg")
	assert.Empty(t, a.binaries["ffmpeg"], "health reports the configured ffmpeg as missing")
	assert.Contains(t, a.binaries, "sanjuuni")
	assert.Contains(t, a.binaries, "yt-dlp")
}
