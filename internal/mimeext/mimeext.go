package mimeext

import (
	"strings"
)

const (
	// DefaultExt is the extension used when MIME is unknown or empty.
	DefaultExt = "mp4"

	// ExtM4A is the file extension for MP4 audio.
	ExtM4A = "m4a"
	// ExtWebM is the file extension for WebM media.
	ExtWebM = "webm"
	// ExtMKV is the file extension for Matroska video.
	ExtMKV = "mkv"
	// ExtTS is the file extension for MPEG transport streams.
	ExtTS = "ts"
	// ExtM3U8 is the file extension for HLS playlists.
	ExtM3U8 = "m3u8"

	// MimeVideoMP4 is the MIME type for MP4 video.
	MimeVideoMP4 = "video/mp4"
	// MimeAudioMP4 is the MIME type for MP4 audio.
	MimeAudioMP4 = "audio/mp4"
	// MimeVideoWebM is the MIME type for WebM video.
	MimeVideoWebM = "video/webm"
	// MimeAudioWebM is the MIME type for WebM audio.
	MimeAudioWebM = "audio/webm"
	// MimeVideoMatroska is the MIME type for Matroska video.
	MimeVideoMatroska = "video/x-matroska"
	// MimeVideoMP2T is the MIME type for MPEG transport streams.
	MimeVideoMP2T = "video/mp2t"
	// MimeHLS is the MIME type for HLS playlists.
	MimeHLS = "application/vnd.apple.mpegurl"
	// MimeOctetStream is the generic binary MIME type served by file hosts.
	MimeOctetStream = "application/octet-stream"
)

// ExtFromMime returns file extension (without dot) for given mime type.
// Falls back to subtype or mp4 if unknown.
func ExtFromMime(mime string) string {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return DefaultExt
	}
	base := strings.ToLower(mime)
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case MimeVideoMP4, MimeOctetStream:
		return DefaultExt
	case MimeAudioMP4:
		return ExtM4A
	case MimeVideoWebM, MimeAudioWebM:
		return ExtWebM
	case MimeVideoMatroska:
		return ExtMKV
	case MimeVideoMP2T:
		return ExtTS
	case MimeHLS, "application/x-mpegurl":
		return ExtM3U8
	}
	parts := strings.Split(base, "/")
	if len(parts) == 2 && parts[1] != "" && !strings.ContainsAny(parts[1], ".+-") {
		return parts[1]
	}
	return DefaultExt
}
