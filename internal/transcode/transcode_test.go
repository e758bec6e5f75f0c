package transcode

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/youcube/internal/media"
)

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func scriptTask(bin string, args ...string) *Task {
	return &Task{Kind: KindAudio, Binary: bin, Args: args}
}

func TestAudioTask(t *testing.T) {
	task := AudioTask("/usr/bin/ffmpeg", "/tmp/youcube-1/media/abc.webm", "/tmp/youcube-1/abc.dfpwm")

	assert.Equal(t, KindAudio, task.Kind)
	assert.Equal(t, "/usr/bin/ffmpeg", task.Binary)
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/tmp/youcube-1/media/abc.webm",
		"-f", "dfpwm", "-ar", "48000", "-ac", "1",
		"/tmp/youcube-1/abc.dfpwm",
	}, task.Args)
	assert.Equal(t, "/tmp/youcube-1/abc.dfpwm", task.Output)
}

func TestVideoTask(t *testing.T) {
	dims := media.Dimensions{Width: 160, Height: 80}

	t.Run("with opencl", func(t *testing.T) {
		task := VideoTask("sanjuuni", "in.webm", "out.32vid", dims, false)
		assert.Equal(t, KindVideo, task.Kind)
		assert.Equal(t, []string{"--width=160", "--height=80", "-i", "in.webm", "--raw", "-o", "out.32vid"}, task.Args)
	})

	t.Run("opencl disabled", func(t *testing.T) {
		task := VideoTask("sanjuuni", "in.webm", "out.32vid", dims, true)
		assert.Equal(t, "--disable-opencl", task.Args[len(task.Args)-1])
		assert.NotContains(t, task.Args, "", "no empty placeholder argument")
	})
}

func TestKindPrefix(t *testing.T) {
	assert.Equal(t, "[FFmpeg]", KindAudio.Prefix())
	assert.Equal(t, "[Sanjuuni]", KindVideo.Prefix())
	assert.NotEqual(t, KindAudio.Prefix(), KindVideo.Prefix())
}

func TestRunner_Run(t *testing.T) {
	t.Run("relays combined output in order and succeeds", func(t *testing.T) {
		bin := writeScript(t, `echo one
printf 'two\rthree\n'
echo four >&2
echo "args: $*"
`)
		var lines []string
		status, err := NewRunner().Run(context.Background(), scriptTask(bin, "a", "b"), func(l string) {
			lines = append(lines, l)
		})
		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Equal(t, []string{"one", "two", "three", "four", "args: a b"}, lines)
	})

	t.Run("non-zero exit is a status, not an error", func(t *testing.T) {
		bin := writeScript(t, "echo failing >&2\nexit 3\n")
		var lines []string
		status, err := NewRunner().Run(context.Background(), scriptTask(bin), func(l string) {
			lines = append(lines, l)
		})
		require.NoError(t, err)
		assert.Equal(t, 3, status)
		assert.Equal(t, []string{"failing"}, lines)
	})

	t.Run("nil callback is allowed", func(t *testing.T) {
		bin := writeScript(t, "echo ignored\n")
		status, err := NewRunner().Run(context.Background(), scriptTask(bin), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, status)
	})

	t.Run("missing executable is a launch error", func(t *testing.T) {
		_, err := NewRunner().Run(context.Background(), scriptTask("definitely-not-a-converter-xyz"), nil)
		require.Error(t, err)
		var launchErr *LaunchError
		require.ErrorAs(t, err, &launchErr)
		assert.Equal(t, "definitely-not-a-converter-xyz", launchErr.Binary)
		assert.True(t, errors.Is(err, exec.ErrNotFound))
	})

	t.Run("lines arrive while the process is still running", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "seen")
		// The script only prints "second" after the callback has observed "first".
		bin := writeScript(t, `echo first
i=0
while [ ! -f "$1" ]; do
  i=$((i+1))
  if [ "$i" -gt 100 ]; then echo timeout; exit 1; fi
  sleep 0.05
done
echo second
`)
		var lines []string
		status, err := NewRunner().Run(context.Background(), scriptTask(bin, marker), func(l string) {
			lines = append(lines, l)
			if l == "first" {
				require.NoError(t, os.WriteFile(marker, nil, 0o644))
			}
		})
		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Equal(t, []string{"first", "second"}, lines)
	})

	t.Run("context cancellation stops the process", func(t *testing.T) {
		bin := writeScript(t, "echo started\nexec sleep 30\n")
		ctx, cancel := context.WithCancel(context.Background())

		var once sync.Once
		start := time.Now()
		_, err := NewRunner().Run(ctx, scriptTask(bin), func(string) { once.Do(cancel) })

		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}
