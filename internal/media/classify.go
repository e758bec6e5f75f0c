package media

import (
	"net/url"
	"sort"
	"strings"
)

// URLKind is the result of classifying a raw URL by shape alone.
type URLKind int

const (
	URLUnknown URLKind = iota
	URLDirectAudio
)

func (k URLKind) String() string {
	if k == URLDirectAudio {
		return "direct-audio"
	}
	return "unknown"
}

// InfoKind is the result of classifying an extracted record.
type InfoKind int

const (
	InfoFinite InfoKind = iota
	InfoDirectAudio
	InfoLivestream
)

func (k InfoKind) String() string {
	switch k {
	case InfoDirectAudio:
		return "direct-audio"
	case InfoLivestream:
		return "livestream"
	default:
		return "finite"
	}
}

// DirectAudioExtensions are the container extensions served as plain audio streams.
var DirectAudioExtensions = []string{".mp3", ".aac", ".m4a", ".ogg", ".opus", ".flac", ".wav", ".m3u8"}

const codecNone = "none"

// IsDirectAudioURL reports whether raw is an http(s) URL whose path ends in a direct
// audio extension, or whose last path segment is such an extension without the dot
// (for example https://radio.example/live/mp3). Matching is case-insensitive and
// ignores trailing slashes.
func IsDirectAudioURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	if path == "" {
		return false
	}
	for _, ext := range DirectAudioExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	last := path[strings.LastIndex(path, "/")+1:]
	for _, ext := range DirectAudioExtensions {
		if last == strings.TrimPrefix(ext, ".") {
			return true
		}
	}
	return false
}

// ClassifyURL classifies raw from its shape alone.
func ClassifyURL(raw string) URLKind {
	if IsDirectAudioURL(raw) {
		return URLDirectAudio
	}
	return URLUnknown
}

// PickAudioURL selects a playable audio URL from info: the record's own url, else the
// best audio-only format, else the best format carrying any audio. Formats are ranked
// by average bitrate then total bitrate, highest first; a missing rate ranks as zero.
// Returns "" when nothing qualifies.
func PickAudioURL(info *Info) string {
	if info == nil {
		return ""
	}
	if info.URL != "" {
		return info.URL
	}

	var candidates []Format
	for _, f := range info.Formats {
		if f.ACodec != codecNone && f.VCodec == codecNone {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		for _, f := range info.Formats {
			if f.ACodec != codecNone {
				candidates = append(candidates, f)
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		abrA, abrB := rate(candidates[a].ABR), rate(candidates[b].ABR)
		if abrA != abrB {
			return abrA > abrB
		}
		return rate(candidates[a].TBR) > rate(candidates[b].TBR)
	})
	return candidates[0].URL
}

func rate(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// IsDirectAudioInfo reports whether info describes a plain audio stream: either its
// picked audio URL has a direct-audio shape, or it is served over http(s) with an audio
// codec, no video codec, and no known duration.
func IsDirectAudioInfo(info *Info) bool {
	if info == nil {
		return false
	}
	if u := PickAudioURL(info); u != "" && IsDirectAudioURL(u) {
		return true
	}
	if info.Protocol != "http" && info.Protocol != "https" {
		return false
	}
	if info.VCodec != "" && info.VCodec != codecNone {
		return false
	}
	if info.ACodec == codecNone {
		return false
	}
	return info.Duration == nil || *info.Duration == 0
}

// ClassifyInfo classifies an extracted record. Direct audio takes precedence over the
// live flags, matching how audio-only requests are routed.
func ClassifyInfo(info *Info) InfoKind {
	switch {
	case IsDirectAudioInfo(info):
		return InfoDirectAudio
	case info != nil && info.IsLive():
		return InfoLivestream
	default:
		return InfoFinite
	}
}
