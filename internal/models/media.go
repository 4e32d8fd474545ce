package models

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
)

// MediaKind classifies an uploaded file.
type MediaKind string

const (
	MediaImage   MediaKind = "image"
	MediaAudio   MediaKind = "audio"
	MediaUnknown MediaKind = "unknown"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".ogg": true, ".oga": true, ".flac": true,
	".m4a": true, ".aac": true, ".webm": true, ".opus": true,
}

// DetectMedia classifies an upload by its leading bytes, falling back to
// the file name when the content is not recognised.
func DetectMedia(name string, head []byte) MediaKind {
	if len(head) > 0 {
		if len(head) > 512 {
			head = head[:512]
		}

		// WAV is reported as audio/wave, RIFF WEBP as image/webp.
		contentType := http.DetectContentType(head)
		switch {
		case strings.HasPrefix(contentType, "image/"):
			return MediaImage
		case strings.HasPrefix(contentType, "audio/"), contentType == "application/ogg":
			return MediaAudio
		case bytes.HasPrefix(head, []byte("fLaC")):
			return MediaAudio
		}
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExtensions[ext]:
		return MediaImage
	case audioExtensions[ext]:
		return MediaAudio
	default:
		return MediaUnknown
	}
}
