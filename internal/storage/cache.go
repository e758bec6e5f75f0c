package storage

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jmylchreest/youcube/internal/media"
)

// Artifact file extensions.
const (
	AudioExt = ".dfpwm"
	VideoExt = ".32vid"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeID maps an identity onto characters that are safe in a filename.
// Leading dots are replaced so an identity can never name a hidden or relative entry.
func SanitizeID(id string) string {
	safe := unsafeIDChars.ReplaceAllString(id, "_")
	for i := 0; i < len(safe) && safe[i] == '.'; i++ {
		safe = safe[:i] + "_" + safe[i+1:]
	}
	if safe == "" {
		return "_"
	}
	return safe
}

// AudioName returns the cache filename of the audio artifact for id.
func AudioName(id string) string {
	return SanitizeID(id) + AudioExt
}

// VideoName returns the cache filename of the video artifact for id at dims.
func VideoName(id string, dims media.Dimensions) string {
	return fmt.Sprintf("%s(%dx%d)%s", SanitizeID(id), dims.Width, dims.Height, VideoExt)
}

// Cache answers existence questions about transcoded artifacts and accepts new ones.
// Artifacts are write-once; nothing here deletes them.
type Cache struct {
	sandbox *Sandbox
	logger  *slog.Logger
}

// NewCache creates a Cache rooted at dataDir.
func NewCache(dataDir string) (*Cache, error) {
	sandbox, err := NewSandbox(dataDir)
	if err != nil {
		return nil, err
	}
	return &Cache{sandbox: sandbox, logger: slog.Default()}, nil
}

// WithLogger sets the logger for the cache.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	c.logger = logger
	return c
}

// Dir returns the absolute data directory.
func (c *Cache) Dir() string {
	return c.sandbox.BaseDir()
}

// EnsureDataDirectory creates the data directory if absent.
func (c *Cache) EnsureDataDirectory() error {
	return c.sandbox.Ensure()
}

// AudioCached reports whether the audio artifact for id exists.
func (c *Cache) AudioCached(id string) bool {
	return c.exists(AudioName(id))
}

// VideoCached reports whether the video artifact for id at dims exists.
func (c *Cache) VideoCached(id string, dims media.Dimensions) bool {
	return c.exists(VideoName(id, dims))
}

func (c *Cache) exists(name string) bool {
	ok, err := c.sandbox.Exists(name)
	if err != nil {
		c.logger.Warn("cache lookup failed", slog.String("file", name), slog.String("error", err.Error()))
		return false
	}
	return ok
}

// Path returns the absolute path for a cache filename.
func (c *Cache) Path(name string) (string, error) {
	return c.sandbox.ResolvePath(name)
}

// Publish moves a finished artifact from scratch space into the cache under name.
func (c *Cache) Publish(srcAbsPath, name string) error {
	if err := c.sandbox.AtomicPublish(srcAbsPath, name); err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	return nil
}

// Artifact describes one cache file.
type Artifact struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size,omitempty"`
}

// Describe returns the state of a cache file.
func (c *Cache) Describe(name string) Artifact {
	a := Artifact{Name: name}
	info, err := c.sandbox.Stat(name)
	if err != nil {
		return a
	}
	a.Exists = true
	a.Size = info.Size()
	return a
}
