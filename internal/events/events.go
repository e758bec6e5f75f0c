// Package events defines the outbound messages of a resolution and the Sink
// interface the resolver reports through.
package events

// Action discriminates outbound messages.
type Action string

const (
	ActionStatus Action = "status"
	ActionMedia  Action = "media"
	ActionError  Action = "error"
)

// Media is the descriptor sent to the client for a resolved item.
// Counts are nil when the source does not report them.
type Media struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	LikeCount      *int64   `json:"like_count"`
	ViewCount      *int64   `json:"view_count"`
	IsLive         bool     `json:"is_live"`
	PlaylistVideos []string `json:"playlist_videos,omitempty"`
}

// Continuation lets the caller pick up a stream that was not materialized.
type Continuation struct {
	SourceURL string `json:"source_url"`
	MediaID   string `json:"media_id"`
}

// Resolved is the terminal success event of a resolution.
type Resolved struct {
	Media        Media
	Files        []string
	Continuation *Continuation
}

// Message is the JSON shape of every outbound message. Media fields are inlined
// when present.
type Message struct {
	Action  Action `json:"action"`
	Message string `json:"message,omitempty"`
	*Media
	Files        []string      `json:"files,omitempty"`
	Continuation *Continuation `json:"continuation,omitempty"`
}

// StatusMessage builds a status message.
func StatusMessage(msg string) Message {
	return Message{Action: ActionStatus, Message: msg}
}

// ErrorMessage builds an error message.
func ErrorMessage(msg string) Message {
	return Message{Action: ActionError, Message: msg}
}

// MediaMessage builds a media message from a resolution result.
func MediaMessage(r Resolved) Message {
	m := r.Media
	return Message{
		Action:       ActionMedia,
		Media:        &m,
		Files:        r.Files,
		Continuation: r.Continuation,
	}
}

// Sink receives the events of one resolution, in order. Implementations must not
// block the caller for long; the resolver calls them from its worker goroutine.
type Sink interface {
	Status(msg string)
	Media(r Resolved)
	Error(msg string)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Status(string) {}
func (discard) Media(Resolved) {}
func (discard) Error(string) {}

// SinkFunc adapts a function receiving Messages to a Sink.
type SinkFunc func(Message)

func (f SinkFunc) Status(msg string) { f(StatusMessage(msg)) }
func (f SinkFunc) Media(r Resolved) { f(MediaMessage(r)) }
func (f SinkFunc) Error(msg string) { f(ErrorMessage(msg)) }

// Compile-time interface checks.
var (
	_ Sink = discard{}
	_ Sink = SinkFunc(nil)
	_ Sink = (*Outbox)(nil)
	_ Sink = (*Recorder)(nil)
	_ Sink = (*WriterSink)(nil)
)
