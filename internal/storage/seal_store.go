package storage

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
)

var (
	// ErrExists is returned under ConflictError when the target exists.
	ErrExists = errors.New("file already exists")

	// ErrInvalidName is returned for names that are not plain file names.
	ErrInvalidName = errors.New("invalid seal file name")

	// ErrTooLarge is returned by WriteStream past the size limit.
	ErrTooLarge = errors.New("file too large")
)

// SealStore writes seal images into one flat output directory.
type SealStore struct {
	baseDir          string
	conflictStrategy ConflictStrategy
	logger           *events.Logger
	maxFileSize      int64
}

// NewSealStore creates the store, creating baseDir if needed.
func NewSealStore(baseDir string, logger *events.Logger) (*SealStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &SealStore{
		baseDir:          absPath,
		conflictStrategy: ConflictRename,
		logger:           logger.WithField("component", "seal_store"),
		maxFileSize:      20 * 1024 * 1024,
	}, nil
}

// SetConflictStrategy sets the conflict resolution strategy.
func (s *SealStore) SetConflictStrategy(strategy ConflictStrategy) {
	s.conflictStrategy = strategy
}

// SetMaxFileSize sets the size limit for WriteStream.
func (s *SealStore) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// BaseDir returns the absolute output directory.
func (s *SealStore) BaseDir() string {
	return s.baseDir
}

// SealFileName names a seal image: sonic_seal_<YYYYmmdd_HHMMSS>_<id8>.png.
func SealFileName(id string, createdAt time.Time) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("sonic_seal_%s_%s.png", createdAt.UTC().Format("20060102_150405"), short)
}

// SavePNG encodes img and writes it atomically.
func (s *SealStore) SavePNG(name string, img image.Image) (string, error) {
	return s.write(name, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := qr.EncodePNG(bw, img); err != nil {
			return err
		}
		return bw.Flush()
	})
}

// WriteStream copies reader into name atomically, rejecting data over the
// size limit.
func (s *SealStore) WriteStream(name string, reader io.Reader) (string, error) {
	return s.write(name, func(w io.Writer) error {
		limited := &io.LimitedReader{R: reader, N: s.maxFileSize + 1}
		if _, err := io.Copy(w, limited); err != nil {
			return fmt.Errorf("write stream: %w", err)
		}
		if limited.N <= 0 {
			return fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, s.maxFileSize)
		}
		return nil
	})
}

func (s *SealStore) write(name string, fill func(io.Writer) error) (string, error) {
	target, err := s.sanitizePath(name)
	if err != nil {
		return "", fmt.Errorf("sanitize path: %w", err)
	}

	if _, err := os.Stat(target); err == nil {
		switch s.conflictStrategy {
		case ConflictError:
			return "", fmt.Errorf("%w: %s", ErrExists, name)
		case ConflictRename:
			target = s.conflictPath(target)
		}
	}

	tempFile, err := os.CreateTemp(s.baseDir, ".seal-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if err := fill(tempFile); err != nil {
		return "", err
	}

	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return "", fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	success = true

	s.logger.WithField("path", target).Debug("Seal file written")
	return target, nil
}

// Open returns a reader for a stored file. Missing files match
// models.ErrSealNotFound.
func (s *SealStore) Open(name string) (io.ReadCloser, error) {
	path, err := s.sanitizePath(name)
	if err != nil {
		return nil, fmt.Errorf("sanitize path: %w", err)
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrSealNotFound, name)
	}
	return f, err
}

// Delete removes a file.
func (s *SealStore) Delete(name string) error {
	path, err := s.sanitizePath(name)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Exists checks if a file exists.
func (s *SealStore) Exists(name string) (bool, error) {
	path, err := s.sanitizePath(name)
	if err != nil {
		return false, fmt.Errorf("sanitize path: %w", err)
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// List returns the PNG files in the store, newest first.
func (s *SealStore) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(s.baseDir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// sanitizePath accepts bare file names only; the store is flat.
func (s *SealStore) sanitizePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: contains null bytes", ErrInvalidName)
	}

	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." {
		return "", fmt.Errorf("%w: %q is not a plain file name", ErrInvalidName, name)
	}

	return filepath.Join(s.baseDir, cleaned), nil
}

// conflictPath finds the first free name of the form name-N.ext.
func (s *SealStore) conflictPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
