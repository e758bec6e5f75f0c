package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/storage"
)

// ArtifactReader is the read side of the artifact cache.
type ArtifactReader interface {
	Describe(name string) storage.Artifact
	Path(name string) (string, error)
}

// CacheHandler exposes the artifact cache: existence checks through the API and
// the artifact bytes under /data.
type CacheHandler struct {
	cache   ArtifactReader
	maxDims media.Dimensions
}

// NewCacheHandler creates a cache handler. Video lookups are capped to maxDims the
// same way resolution requests are.
func NewCacheHandler(cache ArtifactReader, maxDims media.Dimensions) *CacheHandler {
	return &CacheHandler{cache: cache, maxDims: maxDims}
}

// GetCacheEntryInput is the input for a cache lookup.
type GetCacheEntryInput struct {
	ID     string `path:"id" doc:"Media identity"`
	Width  int    `query:"width" minimum:"0" doc:"Video width; with height, also reports the video artifact"`
	Height int    `query:"height" minimum:"0" doc:"Video height"`
}

// GetCacheEntryOutput is the output for a cache lookup.
type GetCacheEntryOutput struct {
	Body CacheEntry
}

// CacheEntry reports the artifacts cached for one media identity.
type CacheEntry struct {
	ID    string            `json:"id"`
	Audio storage.Artifact  `json:"audio"`
	Video *storage.Artifact `json:"video,omitempty"`
	// Dimensions is the capped raster the video artifact is looked up at.
	Dimensions *media.Dimensions `json:"dimensions,omitempty"`
}

// Register registers the cache routes with the API.
func (h *CacheHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getCacheEntry",
		Method:      "GET",
		Path:        "/api/v1/cache/{id}",
		Summary:     "Look up cached artifacts",
		Description: "Reports whether the audio artifact for a media identity exists, and the video artifact when width and height are given",
		Tags:        []string{"Cache"},
	}, h.GetCacheEntry)
}

// RegisterChiRoutes registers the raw artifact download route.
func (h *CacheHandler) RegisterChiRoutes(r chi.Router) {
	r.Get("/data/{file}", h.ServeArtifact)
}

// GetCacheEntry reports the cached artifacts for an identity.
func (h *CacheHandler) GetCacheEntry(_ context.Context, input *GetCacheEntryInput) (*GetCacheEntryOutput, error) {
	if input.ID == "" {
		return nil, huma.Error400BadRequest("id is required")
	}

	entry := CacheEntry{
		ID:    input.ID,
		Audio: h.cache.Describe(storage.AudioName(input.ID)),
	}
	if input.Width > 0 && input.Height > 0 {
		dims := media.Dimensions{Width: input.Width, Height: input.Height}.Cap(h.maxDims)
		video := h.cache.Describe(storage.VideoName(input.ID, dims))
		entry.Video = &video
		entry.Dimensions = &dims
	}

	return &GetCacheEntryOutput{Body: entry}, nil
}

// ServeArtifact streams one cached artifact. Names that leave the cache
// directory are reported as not found.
func (h *CacheHandler) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")

	path, err := h.cache.Path(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to open artifact", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
