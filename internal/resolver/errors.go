package resolver

import "errors"

// Client-facing messages.
const (
	MsgLiveVideoUnsupported = "Livestream video is not supported"
	MsgLiveAudioUnresolved  = "Could not resolve livestream audio URL"
	MsgResolveFailed        = "Failed to resolve media"
	MsgAudioConvertFailed   = "Faild to convert audio!"
	MsgVideoConvertFailed   = "Faild to convert video!"
)

var (
	// ErrEmptyPlaylist is returned when a playlist has no entries to resolve.
	ErrEmptyPlaylist = errors.New("playlist has no entries")
	// ErrEmptyReference is returned for a request without a URL or search term.
	ErrEmptyReference = errors.New("empty media reference")
	// ErrNoIdentity is returned for a finite record without an id to name its
	// artifacts by.
	ErrNoIdentity = errors.New("media has no identity")
	// ErrNoMetadata is returned when the extractor reports success without a record.
	ErrNoMetadata = errors.New("extractor returned no metadata")
)

// RejectError reports a request that cannot be served for the kind of source it
// names, such as video for a livestream. Its message is shown to the client.
type RejectError struct {
	Message string
}

func (e *RejectError) Error() string {
	return e.Message
}

func reject(msg string) *RejectError {
	return &RejectError{Message: msg}
}

// IsReject reports whether err is a *RejectError.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}
