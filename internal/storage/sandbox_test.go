package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb, err := NewSandbox(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	require.NoError(t, sb.Ensure())
	return sb
}

func TestNewSandbox(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	sb, err := NewSandbox(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(sb.BaseDir()))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "directory is created lazily")

	require.NoError(t, sb.Ensure())
	require.NoError(t, sb.Ensure(), "Ensure is idempotent")
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSandbox_ResolvePath(t *testing.T) {
	sb := setupTestSandbox(t)

	tests := []struct {
		name        string
		path        string
		shouldError bool
	}{
		{"simple file", "abc.dfpwm", false},
		{"video name", "abc(160x80).32vid", false},
		{"current dir", ".", false},
		{"parent escape attempt", "../escape.txt", true},
		{"nested parent escape", "subdir/../../escape.txt", true},
		{"absolute path escape", "/etc/passwd", true},
		{"dot dot name", "..test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := sb.ResolvePath(tt.path)
			if tt.shouldError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPathEscape)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(resolved, sb.BaseDir()))
		})
	}
}

func TestSandbox_Exists(t *testing.T) {
	sb := setupTestSandbox(t)

	ok, err := sb.Exists("missing.dfpwm")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(sb.BaseDir(), "present.dfpwm"), []byte("x"), 0o644))
	ok, err = sb.Exists("present.dfpwm")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = sb.Exists("../outside")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestSandbox_AtomicPublish(t *testing.T) {
	sb := setupTestSandbox(t)
	src := filepath.Join(t.TempDir(), "out.dfpwm")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))

	require.NoError(t, sb.AtomicPublish(src, "abc.dfpwm"))

	data, err := os.ReadFile(filepath.Join(sb.BaseDir(), "abc.dfpwm"))
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source is moved, not copied")

	entries, err := os.ReadDir(sb.BaseDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "no temp files left behind")
	}
}

func TestSandbox_AtomicPublish_Errors(t *testing.T) {
	sb := setupTestSandbox(t)

	err := sb.AtomicPublish(filepath.Join(t.TempDir(), "missing"), "x.dfpwm")
	assert.Error(t, err)

	src := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(src, nil, 0o644))
	assert.ErrorIs(t, sb.AtomicPublish(src, "../x"), ErrPathEscape)
}

func TestCopyPublish(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, copyPublish(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRandomHex(t *testing.T) {
	a, b := randomHex(8), randomHex(8)
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}
