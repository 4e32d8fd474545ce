package storage

import (
	"image"
	"io"
	"time"
)

// SealFiles manages seal images on disk.
type SealFiles interface {
	// SavePNG writes img atomically under name and returns its full path.
	SavePNG(name string, img image.Image) (string, error)

	// WriteStream saves data from a reader atomically.
	WriteStream(name string, reader io.Reader) (string, error)

	// Open returns a reader for a stored file.
	Open(name string) (io.ReadCloser, error)

	// Delete removes a file.
	Delete(name string) error

	// Exists checks if a file exists.
	Exists(name string) (bool, error)

	// List returns stored seal images, newest first.
	List() ([]FileInfo, error)
}

// FileInfo contains file metadata.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// ConflictStrategy defines how to handle an existing file of the same name.
type ConflictStrategy int

const (
	// ConflictRename writes to a new name with a numeric suffix.
	ConflictRename ConflictStrategy = iota

	// ConflictOverwrite replaces existing files.
	ConflictOverwrite

	// ConflictError returns an error on conflict.
	ConflictError
)
