// Package extractor drives yt-dlp to fetch media metadata and download raw media.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/jmylchreest/youcube/internal/config"
	"github.com/jmylchreest/youcube/internal/media"
)

// ErrNoMediaFile is returned when a download finished without leaving a file behind.
var ErrNoMediaFile = errors.New("download produced no media file")

const (
	// FormatSelector picks the best audio-only stream, else the best muxed stream.
	FormatSelector = "bestaudio/best"
	// OutputTemplate names downloads by their id.
	OutputTemplate = "%(id)s.%(ext)s"

	infoFileName     = "info.json"
	mediaDirName     = "media"
	statusStarting   = "starting"
	progressInterval = 500 * time.Millisecond
)

// YTDLP implements the resolver's extraction service on top of yt-dlp.
type YTDLP struct {
	binary string
	cfg    config.ExtractorConfig
	logger *slog.Logger
}

// New creates a YTDLP. An empty binary lets go-ytdlp locate yt-dlp itself.
func New(cfg config.ExtractorConfig, binary string) *YTDLP {
	return &YTDLP{binary: binary, cfg: cfg, logger: slog.Default()}
}

// WithLogger sets the logger for the extractor.
func (y *YTDLP) WithLogger(logger *slog.Logger) *YTDLP {
	y.logger = logger
	return y
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().
		IgnoreConfig().
		NoWarnings().
		Format(FormatSelector).
		RestrictFilenames()
	if y.binary != "" {
		cmd.SetExecutable(y.binary)
	}
	return cmd
}

// commonArgs returns the flags shared by extraction and download.
func (y *YTDLP) commonArgs() []string {
	var args []string
	if y.cfg.DefaultSearch != "" {
		args = append(args, "--default-search", y.cfg.DefaultSearch)
	}
	if y.cfg.PlayerClient != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+y.cfg.PlayerClient)
	}
	if y.cfg.CookieFile != "" {
		args = append(args, "--cookies", y.cfg.CookieFile)
	}
	for _, rt := range y.cfg.JSRuntimes {
		args = append(args, "--js-runtimes", rt)
	}
	return args
}

func (y *YTDLP) extractArgs(target string) []string {
	args := y.commonArgs()
	args = append(args, "--dump-single-json", "--skip-download", "--", target)
	return args
}

// Extract fetches metadata for target, a URL, id or search term. With flat set,
// playlist entries are returned as lightweight references.
func (y *YTDLP) Extract(ctx context.Context, target string, flat bool) (*media.Info, error) {
	cmd := y.command()
	if flat {
		cmd.FlatPlaylist()
	}

	y.logger.DebugContext(ctx, "extracting metadata", slog.String("target", target), slog.Bool("flat", flat))
	res, err := cmd.Run(ctx, y.extractArgs(target)...)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", target, err)
	}

	info, err := decodeInfo(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", target, err)
	}
	return info, nil
}

func decodeInfo(stdout string) (*media.Info, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil, errors.New("empty metadata output")
	}
	// Only the last line is the JSON document; anything before it is chatter.
	if i := strings.LastIndex(stdout, "\n"); i >= 0 {
		stdout = stdout[i+1:]
	}
	var info media.Info
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &info, nil
}

// Download materializes the media described by info into dir and returns the path
// of the downloaded file. onProgress receives each progress update.
func (y *YTDLP) Download(ctx context.Context, info *media.Info, dir string, onProgress func(media.Progress)) (string, error) {
	raw, err := info.RawJSON()
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	infoPath := filepath.Join(dir, infoFileName)
	if err := os.WriteFile(infoPath, raw, 0o600); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}

	mediaDir := filepath.Join(dir, mediaDirName)
	if err := os.MkdirAll(mediaDir, 0o750); err != nil {
		return "", fmt.Errorf("creating media directory: %w", err)
	}

	cmd := y.command().
		Output(filepath.Join(mediaDir, OutputTemplate)).
		NoPart().
		ForceOverwrites()
	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if onProgress == nil {
			return
		}
		onProgress(progressFrom(string(update.Status), update.DownloadedBytes, update.TotalBytes, update.ETA()))
	})

	args := append(y.commonArgs(), "--load-info-json", infoPath)
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		detail := ""
		if res != nil {
			detail = lastLine(res.Stderr)
		}
		if detail != "" {
			return "", fmt.Errorf("downloading %s: %w (%s)", info.ID, err, detail)
		}
		return "", fmt.Errorf("downloading %s: %w", info.ID, err)
	}
	if res != nil {
		y.logger.DebugContext(ctx, "[yt-dlp] download finished",
			slog.String("id", info.ID), slog.String("output", lastLine(res.Stdout)))
	}

	return findMediaFile(mediaDir)
}

// progressFrom converts a yt-dlp progress update into the form shown to clients.
func progressFrom(status string, downloaded, total int, eta time.Duration) media.Progress {
	p := media.Progress{Status: status}
	if status == statusStarting {
		p.Status = media.ProgressWaiting
	}
	if total > 0 {
		p.Percent = fmt.Sprintf("%.1f%%", float64(downloaded)/float64(total)*100)
	}
	if eta > 0 {
		p.ETA = formatETA(eta)
	}
	return p
}

// formatETA renders d as MM:SS, or HH:MM:SS past an hour.
func formatETA(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	h, m, s := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func lastLine(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.LastIndex(out, "\n"); i >= 0 {
		return strings.TrimSpace(out[i+1:])
	}
	return out
}

// findMediaFile returns the first regular file in dir, by name.
func findMediaFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing downloads: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoMediaFile
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
