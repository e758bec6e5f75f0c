package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/storage"
	"github.com/jmylchreest/youcube/internal/transcode"
)

// failure is one artifact whose conversion did not succeed.
type failure struct {
	Name string
	Kind transcode.Kind
}

// outcome is shared by every request coalesced onto one materialization.
type outcome struct {
	files    []string
	failures []failure
}

func (o *outcome) failedNames() []string {
	if len(o.failures) == 0 {
		return nil
	}
	names := make([]string, len(o.failures))
	for i, f := range o.failures {
		names[i] = f.Name
	}
	return names
}

// covers reports whether o accounts for every name in want, either as a file or a
// failure.
func (o *outcome) covers(want []string) bool {
	for _, name := range want {
		if !slices.Contains(o.files, name) && !slices.ContainsFunc(o.failures, func(f failure) bool {
			return f.Name == name
		}) {
			return false
		}
	}
	return true
}

// only returns the part of o that concerns the names in want.
func (o *outcome) only(want []string) *outcome {
	out := &outcome{}
	for _, name := range o.files {
		if slices.Contains(want, name) {
			out.files = append(out.files, name)
		}
	}
	for _, f := range o.failures {
		if slices.Contains(want, f.Name) {
			out.failures = append(out.failures, f)
		}
	}
	return out
}

func failureMessage(kind transcode.Kind) string {
	if kind == transcode.KindVideo {
		return MsgVideoConvertFailed
	}
	return MsgAudioConvertFailed
}

// wantedNames lists the artifacts a request needs, audio first.
func wantedNames(id string, video bool, dims media.Dimensions) []string {
	names := []string{storage.AudioName(id)}
	if video {
		names = append(names, storage.VideoName(id, dims))
	}
	return names
}

// activeKeys tracks identities with a materialization in progress so that joiners
// can tell their client why they are waiting.
type activeKeys struct {
	mu   sync.Mutex
	keys map[string]int
}

func (a *activeKeys) add(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.keys == nil {
		a.keys = make(map[string]int)
	}
	a.keys[key]++
}

func (a *activeKeys) remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.keys[key] <= 1 {
		delete(a.keys, key)
		return
	}
	a.keys[key]--
}

func (a *activeKeys) has(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.keys[key] > 0
}

// materialize makes sure the artifacts for a finite record exist. At most one
// materialization per identity runs at a time. A caller that joins one in progress
// waits for it and takes its result when that covers everything the caller needs;
// otherwise it runs again, and the cache check skips whatever the previous run
// produced. Each caller reports the conversion failures it shares to its own sink.
func (r *Resolver) materialize(
	ctx context.Context,
	logger *slog.Logger,
	info *media.Info,
	id string,
	video bool,
	dims media.Dimensions,
	sink events.Sink,
) (*outcome, error) {
	want := wantedNames(id, video, dims)

	for {
		if r.active.has(id) {
			sink.Status(MsgWaiting)
		}

		leader := false
		v, err, _ := r.inflight.Do(id, func() (any, error) {
			leader = true
			r.active.add(id)
			defer r.active.remove(id)
			return r.produce(ctx, logger, info, id, video, dims, sink)
		})

		if err != nil {
			// The leader was canceled but this caller was not: take over.
			if !leader && ctx.Err() == nil && isContextErr(err) {
				continue
			}
			return nil, err
		}

		out := v.(*outcome)
		if leader {
			return out, nil
		}
		if !out.covers(want) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			logger.Debug("joined materialization did not cover request, running again")
			continue
		}

		out = out.only(want)
		for _, f := range out.failures {
			sink.Error(failureMessage(f.Kind))
		}
		return out, nil
	}
}

// produce downloads the source when any artifact is missing and converts each
// missing one, audio before video. Conversion failures are recorded in the outcome
// and reported to sink; they do not stop the remaining conversions.
func (r *Resolver) produce(
	ctx context.Context,
	logger *slog.Logger,
	info *media.Info,
	id string,
	video bool,
	dims media.Dimensions,
	sink events.Sink,
) (*outcome, error) {
	if err := r.cache.EnsureDataDirectory(); err != nil {
		return nil, fmt.Errorf("preparing data directory: %w", err)
	}

	audioName := storage.AudioName(id)
	videoName := storage.VideoName(id, dims)

	needAudio := !r.cache.AudioCached(id)
	needVideo := video && !r.cache.VideoCached(id, dims)

	if !needAudio {
		r.metrics.IncCacheHit(string(transcode.KindAudio))
	}
	if video && !needVideo {
		r.metrics.IncCacheHit(string(transcode.KindVideo))
	}

	out := &outcome{}
	if !needAudio && !needVideo {
		logger.Debug("artifacts cached")
		out.files = append(out.files, audioName)
		if video {
			out.files = append(out.files, videoName)
		}
		return out, nil
	}

	sink.Status(MsgDownloading)

	scratch, err := storage.NewScratchDir(r.cfg.ScratchRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory",
				slog.String("path", scratch),
				slog.String("error", err.Error()))
		}
	}()

	source, err := r.extractor.Download(ctx, info, scratch, func(p media.Progress) {
		if msg, ok := p.StatusMessage(); ok {
			sink.Status(msg)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", id, err)
	}
	logger.Debug("source downloaded", slog.String("path", source))

	if needAudio {
		task := transcode.AudioTask(r.cfg.FFmpegPath, source, filepath.Join(scratch, audioName))
		if err := r.convert(ctx, logger, task, audioName, sink, out); err != nil {
			return nil, err
		}
	} else {
		out.files = append(out.files, audioName)
	}

	if video {
		if needVideo {
			task := transcode.VideoTask(r.cfg.SanjuuniPath, source, filepath.Join(scratch, videoName), dims, r.cfg.DisableOpenCL)
			if err := r.convert(ctx, logger, task, videoName, sink, out); err != nil {
				return nil, err
			}
		} else {
			out.files = append(out.files, videoName)
		}
	}

	return out, nil
}

// convert runs task and publishes its output into the cache as name. Only
// cancellation is returned as an error; every other failure lands in out.
func (r *Resolver) convert(
	ctx context.Context,
	logger *slog.Logger,
	task *transcode.Task,
	name string,
	sink events.Sink,
	out *outcome,
) error {
	var onLine func(string)
	if task.Kind == transcode.KindVideo {
		sink.Status(MsgVideoStart)
		onLine = sink.Status
	} else {
		sink.Status(MsgAudioStart)
	}

	logger = logger.With(slog.String("kind", string(task.Kind)), slog.String("file", name))

	status, err := r.runner.Run(ctx, task, onLine)
	switch {
	case err != nil && isContextErr(err):
		return err
	case err != nil:
		logger.Error(task.Kind.Prefix()+" failed to start", slog.String("error", err.Error()))
	case status != 0:
		logger.Warn(task.Kind.Prefix()+" exited with non-zero status", slog.Int("status", status))
		err = fmt.Errorf("exit status %d", status)
	default:
		if err = r.cache.Publish(task.Output, name); err != nil {
			logger.Error("failed to publish artifact", slog.String("error", err.Error()))
		}
	}

	r.metrics.IncTranscode(string(task.Kind), err == nil)
	if err != nil {
		out.failures = append(out.failures, failure{Name: name, Kind: task.Kind})
		sink.Error(failureMessage(task.Kind))
		return nil
	}

	logger.Info("artifact converted")
	out.files = append(out.files, name)
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
