// Package media holds the metadata record returned by the extractor and the pure
// functions that classify it: direct-stream detection, audio URL selection,
// identity derivation and dimension capping.
package media

import (
	"encoding/json"
	"strings"
)

// Extractor names with special handling.
const (
	ExtractorGeneric = "generic"
	ExtractorYouTube = "youtube"
)

// Record types reported in Info.Type.
const (
	TypePlaylist       = "playlist"
	TypeURL            = "url"
	TypeURLTransparent = "url_transparent"
)

// LiveStatusIsLive is the live_status value of an ongoing broadcast.
const LiveStatusIsLive = "is_live"

// Info is the subset of a yt-dlp info record that resolution depends on.
// Pointer fields distinguish an absent value from a zero one; the direct-stream
// and backfill rules depend on that distinction.
type Info struct {
	ID               string   `json:"id"`
	Title            string   `json:"title,omitempty"`
	Type             string   `json:"_type,omitempty"`
	Extractor        string   `json:"extractor,omitempty"`
	IEKey            string   `json:"ie_key,omitempty"`
	WebpageURL       string   `json:"webpage_url,omitempty"`
	WebpageURLDomain string   `json:"webpage_url_domain,omitempty"`
	URL              string   `json:"url,omitempty"`
	Protocol         string   `json:"protocol,omitempty"`
	VCodec           string   `json:"vcodec,omitempty"`
	ACodec           string   `json:"acodec,omitempty"`
	Ext              string   `json:"ext,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	ViewCount        *int64   `json:"view_count,omitempty"`
	LikeCount        *int64   `json:"like_count,omitempty"`
	IsLiveFlag       *bool    `json:"is_live,omitempty"`
	LiveStatus       string   `json:"live_status,omitempty"`
	Formats          []Format `json:"formats,omitempty"`
	Entries          []*Info  `json:"entries,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the record and keeps the original bytes, which the
// extractor hands back verbatim when downloading.
func (i *Info) UnmarshalJSON(data []byte) error {
	type plain Info
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = Info(p)
	i.raw = append(json.RawMessage(nil), data...)
	return nil
}

// RawJSON returns the record as originally decoded, or a re-encoding of the known
// fields when the record was built in code.
func (i *Info) RawJSON() (json.RawMessage, error) {
	if len(i.raw) > 0 {
		return i.raw, nil
	}
	type plain Info
	return json.Marshal((*plain)(i))
}

// Format is one entry of Info.Formats.
type Format struct {
	FormatID string   `json:"format_id,omitempty"`
	URL      string   `json:"url,omitempty"`
	Ext      string   `json:"ext,omitempty"`
	Protocol string   `json:"protocol,omitempty"`
	ACodec   string   `json:"acodec,omitempty"`
	VCodec   string   `json:"vcodec,omitempty"`
	ABR      *float64 `json:"abr,omitempty"`
	TBR      *float64 `json:"tbr,omitempty"`
}

// ExtractorName returns the lower-cased extractor name. Flat playlist entries carry
// only ie_key, which is used as a fallback.
func (i *Info) ExtractorName() string {
	if i.Extractor != "" {
		return strings.ToLower(i.Extractor)
	}
	return strings.ToLower(i.IEKey)
}

// IsPlaylist reports whether the record is a playlist container.
func (i *Info) IsPlaylist() bool {
	return i.Type == TypePlaylist
}

// IsReference reports whether the record is an unresolved pointer produced by flat
// extraction rather than a full media record.
func (i *Info) IsReference() bool {
	return i.Type == TypeURL || i.Type == TypeURLTransparent
}

// IsLive reports an ongoing livestream, from either the is_live flag or live_status.
func (i *Info) IsLive() bool {
	return (i.IsLiveFlag != nil && *i.IsLiveFlag) || i.LiveStatus == LiveStatusIsLive
}

// MissingCounts reports whether view or like counts are absent.
func (i *Info) MissingCounts() bool {
	return i.ViewCount == nil || i.LikeCount == nil
}

// NeedsBackfill reports whether the record must be extracted again before use:
// YouTube entries without engagement counts, and any flat reference.
func (i *Info) NeedsBackfill() bool {
	if i.ExtractorName() == ExtractorYouTube && i.MissingCounts() {
		return true
	}
	return i.IsReference()
}

// BackfillTarget returns what to hand the extractor when re-extracting this record.
// YouTube resolves bare ids; other extractors need the entry's URL.
func (i *Info) BackfillTarget() string {
	if i.ExtractorName() == ExtractorYouTube && i.ID != "" {
		return i.ID
	}
	for _, candidate := range []string{i.URL, i.WebpageURL} {
		if candidate != "" {
			return candidate
		}
	}
	return i.ID
}

// EntryRef returns the queue value for a playlist entry: its id, or its URL when the
// entry has none.
func (i *Info) EntryRef() string {
	if i.ID != "" {
		return i.ID
	}
	return i.URL
}

// Identity returns the cache identity for a finite record. Generic-extractor ids are
// prefixed with "g" and the site domain since bare numeric ids collide across sites.
// A record without an id has no identity and gives "".
func (i *Info) Identity() string {
	if i.ID == "" {
		return ""
	}
	if i.ExtractorName() == ExtractorGeneric {
		return "g" + i.WebpageURLDomain + i.ID
	}
	return i.ID
}
