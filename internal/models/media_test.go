package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/echoseal/internal/models"
)

func TestDetectMedia(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content []byte
		want    models.MediaKind
	}{
		{
			name:    "png by content",
			path:    "upload.bin",
			content: []byte("\x89PNG\r\n\x1a\n0000"),
			want:    models.MediaImage,
		},
		{
			name:    "jpeg by content",
			path:    "",
			content: []byte{0xFF, 0xD8, 0xFF, 0xE0},
			want:    models.MediaImage,
		},
		{
			name:    "wav by content",
			path:    "blob",
			content: []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
			want:    models.MediaAudio,
		},
		{
			name:    "flac by content",
			path:    "blob",
			content: []byte("fLaC\x00\x00\x00\x22"),
			want:    models.MediaAudio,
		},
		{
			name:    "audio by extension",
			path:    "voice.M4A",
			content: []byte{0x00, 0x00, 0x00, 0x20},
			want:    models.MediaAudio,
		},
		{
			name:    "image by extension when empty",
			path:    "seal.png",
			content: nil,
			want:    models.MediaImage,
		},
		{
			name:    "text",
			path:    "notes.txt",
			content: []byte("just words"),
			want:    models.MediaUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.DetectMedia(tt.path, tt.content))
		})
	}
}
