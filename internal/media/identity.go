package media

import (
	"crypto/sha1" //nolint:gosec // identity hash, not a security boundary
	"encoding/hex"
)

// LiveIDPrefix marks identities derived from a stream URL rather than a native id.
const LiveIDPrefix = "live-"

const liveIDHexLen = 16

// LiveStreamID derives a stable identity for a stream URL that has no native id:
// "live-" followed by the first 16 hex characters of the URL's SHA-1.
func LiveStreamID(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL)) //nolint:gosec
	return LiveIDPrefix + hex.EncodeToString(sum[:])[:liveIDHexLen]
}
