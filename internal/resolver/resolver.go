// Package resolver turns a media request into cached, playable artifacts. It ties
// together URL classification, metadata extraction, the artifact cache and the
// converters, and reports progress through an events.Sink.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jmylchreest/youcube/internal/config"
	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/metrics"
	"github.com/jmylchreest/youcube/internal/observability"
	"github.com/jmylchreest/youcube/internal/storage"
	"github.com/jmylchreest/youcube/internal/transcode"
)

// Status messages.
const (
	MsgGettingInfo = "Getting resource information ..."
	MsgDownloading = "Downloading resource ..."
	MsgWaiting     = "Waiting for another request ..."
	MsgAudioStart  = "Converting audio to dfpwm ..."
	MsgVideoStart  = "Converting video to 32vid ..."
)

// Extractor fetches metadata and raw media.
type Extractor interface {
	Extract(ctx context.Context, target string, flat bool) (*media.Info, error)
	Download(ctx context.Context, info *media.Info, dir string, onProgress func(media.Progress)) (string, error)
}

// Runner executes converter tasks.
type Runner interface {
	Run(ctx context.Context, task *transcode.Task, onLine func(string)) (int, error)
}

// ArtifactStore is the artifact cache.
type ArtifactStore interface {
	EnsureDataDirectory() error
	AudioCached(id string) bool
	VideoCached(id string, dims media.Dimensions) bool
	Publish(srcAbsPath, name string) error
}

// URLResolver rewrites references from services the extractor cannot read, such as
// music streaming links, into references it can. An empty result leaves the URL
// unchanged; a result with several entries is treated as a playlist.
type URLResolver interface {
	ResolveURL(ctx context.Context, url string) ([]string, error)
}

// Config holds the resolver's settings.
type Config struct {
	FFmpegPath    string
	SanjuuniPath  string
	DisableOpenCL bool
	MaxDimensions media.Dimensions
	// ScratchRoot is where per-request working directories go. Empty means os.TempDir().
	ScratchRoot string
}

// NewConfig builds a Config from application configuration and the located binaries.
func NewConfig(cfg *config.Config, ffmpegPath, sanjuuniPath string) Config {
	return Config{
		FFmpegPath:    ffmpegPath,
		SanjuuniPath:  sanjuuniPath,
		DisableOpenCL: cfg.Transcode.DisableOpenCL,
		MaxDimensions: media.Dimensions{Width: cfg.Transcode.MaxWidth, Height: cfg.Transcode.MaxHeight},
		ScratchRoot:   cfg.Storage.ScratchRoot(),
	}
}

// Result is the outcome of a successful resolution.
type Result struct {
	Media events.Media
	// Files lists the cache filenames the client can use. For streams that are not
	// materialized it names the artifact the caller is expected to produce.
	Files []string
	// Failed lists artifacts whose conversion failed.
	Failed []string
	// Continuation is set for streams that were not materialized.
	Continuation *events.Continuation
}

// Resolved returns the terminal event for r.
func (r *Result) Resolved() events.Resolved {
	return events.Resolved{Media: r.Media, Files: r.Files, Continuation: r.Continuation}
}

// Resolver resolves media requests. It is safe for concurrent use.
type Resolver struct {
	cfg         Config
	extractor   Extractor
	runner      Runner
	cache       ArtifactStore
	urlResolver URLResolver
	metrics     *metrics.Metrics
	logger      *slog.Logger
	inflight    singleflight.Group
	active      activeKeys
}

// New creates a Resolver.
func New(cfg Config, extractor Extractor, runner Runner, cache ArtifactStore) *Resolver {
	return &Resolver{
		cfg:       cfg,
		extractor: extractor,
		runner:    runner,
		cache:     cache,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the resolver.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = observability.WithComponent(logger, "resolver")
	return r
}

// WithMetrics sets the metrics recorder.
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

// WithURLResolver sets the URL pre-processor.
func (r *Resolver) WithURLResolver(u URLResolver) *Resolver {
	r.urlResolver = u
	return r
}

// Resolve runs one request to completion. Progress goes to sink, ending with exactly
// one terminal event: Media on success, Error otherwise. Converter failures are
// reported as errors on sink without failing the request.
//
// The returned error is a *RejectError when the source cannot serve the requested
// mode, or the underlying extraction failure.
func (r *Resolver) Resolve(ctx context.Context, req media.Request, sink events.Sink) (res *Result, err error) {
	if sink == nil {
		sink = events.Discard
	}
	logger := r.logger.With(slog.String("url", req.URL))
	if id := observability.RequestIDFromContext(ctx); id != "" {
		logger = observability.WithRequestID(logger, id)
	}

	finished := observability.TimedOperationWithError(ctx, logger, "resolve", &err)
	defer finished()

	done := r.metrics.ResolutionStarted()
	res, err = r.resolve(ctx, logger, req, sink)
	switch {
	case err == nil:
		done(metrics.OutcomeResolved)
		sink.Media(res.Resolved())
		logger.Debug("media resolved",
			slog.String("media_id", res.Media.ID),
			slog.Any("files", res.Files),
			slog.Int("failed", len(res.Failed)),
			slog.Bool("is_live", res.Media.IsLive))
		return res, nil
	case IsReject(err):
		done(metrics.OutcomeRejected)
		sink.Error(err.Error())
	case isContextErr(err):
		done(metrics.OutcomeCanceled)
		sink.Error(MsgResolveFailed)
	default:
		done(metrics.OutcomeFailed)
		sink.Error(MsgResolveFailed)
	}
	return nil, err
}

func (r *Resolver) resolve(ctx context.Context, logger *slog.Logger, req media.Request, sink events.Sink) (*Result, error) {
	video := req.IsVideo()
	var dims media.Dimensions
	if video {
		dims = req.Dimensions().Cap(r.cfg.MaxDimensions)
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, ErrEmptyReference
	}
	if media.ClassifyURL(url) == media.URLDirectAudio {
		if video {
			return nil, reject(MsgLiveVideoUnsupported)
		}
		return r.handBack(directStream(url, url, nil, nil))
	}

	sink.Status(MsgGettingInfo)

	var queue []string
	if r.urlResolver != nil {
		rewritten, rest, err := r.preprocess(ctx, url)
		if err != nil {
			return nil, err
		}
		url, queue = rewritten, rest
	}

	info, err := r.extract(ctx, url, true)
	if err != nil {
		return nil, err
	}

	if info.IsPlaylist() {
		entries := nonNil(info.Entries)
		if len(entries) == 0 {
			return nil, fmt.Errorf("%s: %w", url, ErrEmptyPlaylist)
		}
		for _, e := range entries[1:] {
			queue = append(queue, e.EntryRef())
		}
		logger.Debug("expanded playlist",
			slog.String("playlist_id", info.ID),
			slog.Int("entries", len(entries)))
		info = entries[0]
	}

	if info.NeedsBackfill() {
		target := info.BackfillTarget()
		logger.Debug("re-extracting entry", slog.String("target", target))
		full, err := r.extract(ctx, target, false)
		if err != nil {
			return nil, err
		}
		info = full
	}

	kind := media.ClassifyInfo(info)
	if video && kind != media.InfoFinite {
		return nil, reject(MsgLiveVideoUnsupported)
	}

	switch kind {
	case media.InfoDirectAudio:
		audioURL := media.PickAudioURL(info)
		if audioURL == "" {
			audioURL = url
		}
		title := info.Title
		if title == "" {
			title = url
		}
		res := directStream(audioURL, title, info.LikeCount, info.ViewCount)
		res.Media.PlaylistVideos = queue
		return r.handBack(res)

	case media.InfoLivestream:
		audioURL := media.PickAudioURL(info)
		if audioURL == "" {
			return nil, reject(MsgLiveAudioUnresolved)
		}
		id := info.Identity()
		if id == "" {
			id = media.LiveStreamID(audioURL)
		}
		return r.handBack(&Result{
			Media: events.Media{
				ID:             id,
				Title:          info.Title,
				LikeCount:      info.LikeCount,
				ViewCount:      info.ViewCount,
				IsLive:         true,
				PlaylistVideos: queue,
			},
			Files:        []string{storage.AudioName(id)},
			Continuation: &events.Continuation{SourceURL: audioURL, MediaID: id},
		})
	}

	id := info.Identity()
	if id == "" {
		return nil, fmt.Errorf("%s: %w", url, ErrNoIdentity)
	}
	logger = observability.WithMediaID(logger, id)

	out, err := r.materialize(ctx, logger, info, id, video, dims, sink)
	if err != nil {
		return nil, err
	}

	return &Result{
		Media: events.Media{
			ID:             id,
			Title:          info.Title,
			LikeCount:      info.LikeCount,
			ViewCount:      info.ViewCount,
			PlaylistVideos: queue,
		},
		Files:  append([]string(nil), out.files...),
		Failed: out.failedNames(),
	}, nil
}

func (r *Resolver) extract(ctx context.Context, target string, flat bool) (*media.Info, error) {
	info, err := r.extractor.Extract(ctx, target, flat)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%s: %w", target, ErrNoMetadata)
	}
	return info, nil
}

// preprocess passes url through the URL resolver. When it expands to several
// references, the first is resolved once more and the rest are returned as queue.
func (r *Resolver) preprocess(ctx context.Context, url string) (string, []string, error) {
	refs, err := r.urlResolver.ResolveURL(ctx, url)
	if err != nil {
		return "", nil, fmt.Errorf("preprocessing %q: %w", url, err)
	}
	switch len(refs) {
	case 0:
		return url, nil, nil
	case 1:
		return refs[0], nil, nil
	}

	first := refs[0]
	again, err := r.urlResolver.ResolveURL(ctx, first)
	if err != nil {
		return "", nil, fmt.Errorf("preprocessing %q: %w", first, err)
	}
	if len(again) > 0 {
		first = again[0]
	}
	return first, append([]string(nil), refs[1:]...), nil
}

// handBack returns a stream result whose artifact the caller produces, making sure
// the data directory exists to receive it.
func (r *Resolver) handBack(res *Result) (*Result, error) {
	if err := r.cache.EnsureDataDirectory(); err != nil {
		return nil, fmt.Errorf("preparing data directory: %w", err)
	}
	return res, nil
}

// directStream describes a stream handed back to the caller instead of being
// materialized.
func directStream(streamURL, title string, likes, views *int64) *Result {
	id := media.LiveStreamID(streamURL)
	return &Result{
		Media: events.Media{
			ID:        id,
			Title:     title,
			LikeCount: likes,
			ViewCount: views,
			IsLive:    true,
		},
		Files:        []string{storage.AudioName(id)},
		Continuation: &events.Continuation{SourceURL: streamURL, MediaID: id},
	}
}

func nonNil(entries []*media.Info) []*media.Info {
	out := make([]*media.Info, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
