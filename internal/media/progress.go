package media

import "github.com/jmylchreest/youcube/internal/util"

// Download progress states reported by the extractor.
const (
	ProgressWaiting     = "waiting"
	ProgressPaused      = "paused"
	ProgressDownloading = "downloading"
	ProgressFinished    = "finished"
)

// WaitingMessage is shown while the source has not started sending data.
const WaitingMessage = "Waiting on YouTube ..."

// Progress is one download progress update.
type Progress struct {
	Status  string `json:"status"`
	Percent string `json:"percent,omitempty"`
	ETA     string `json:"eta,omitempty"`
}

// StatusMessage renders p for the client. ok is false for updates that carry nothing
// worth showing, such as the final "finished" notice.
func (p Progress) StatusMessage() (msg string, ok bool) {
	switch p.Status {
	case ProgressWaiting, ProgressPaused:
		return WaitingMessage, true
	case ProgressDownloading:
		if p.Percent == "" || p.ETA == "" {
			return WaitingMessage, true
		}
		return util.StripANSI("download " + util.RemoveWhitespace(p.Percent) + " ETA " + p.ETA), true
	default:
		return "", false
	}
}
