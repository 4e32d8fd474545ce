package seal

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
)

// Frame is one captured image.
type Frame struct {
	Name  string
	Image image.Image
}

// FrameSource yields camera frames. Next returns a nil frame when nothing
// new has been captured, and an error wrapping models.ErrCameraUnavailable
// when the camera is gone.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
}

var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
}

// DirectorySource reads frames from a snapshot directory that a camera
// tool writes into. Only the newest unseen file is returned; older unseen
// files are skipped as stale.
type DirectorySource struct {
	dir     string
	consume bool
	seen    map[string]time.Time
}

// NewDirectorySource opens dir. With consume set, frames are deleted once
// read.
func NewDirectorySource(dir string, consume bool) (*DirectorySource, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	return &DirectorySource{
		dir:     dir,
		consume: consume,
		seen:    make(map[string]time.Time),
	}, nil
}

// Next returns the newest frame written since the previous call.
func (s *DirectorySource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, cameraUnavailable(s.dir, err)
	}

	var (
		newest    string
		newestMod time.Time
		fresh     []string
	)

	for _, entry := range entries {
		if entry.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		mod := info.ModTime()
		if last, ok := s.seen[entry.Name()]; ok && !mod.After(last) {
			continue
		}

		s.seen[entry.Name()] = mod
		fresh = append(fresh, entry.Name())

		if newest == "" || mod.After(newestMod) || (mod.Equal(newestMod) && entry.Name() > newest) {
			newest, newestMod = entry.Name(), mod
		}
	}

	if newest == "" {
		return nil, nil
	}

	path := filepath.Join(s.dir, newest)
	img, err := qr.OpenImage(path)

	if s.consume {
		for _, name := range fresh {
			_ = os.Remove(filepath.Join(s.dir, name))
			delete(s.seen, name)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", newest, err)
	}

	return &Frame{Name: newest, Image: img}, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return cameraUnavailable(dir, err)
	}
	if !info.IsDir() {
		return cameraUnavailable(dir, fmt.Errorf("%s is not a directory", dir))
	}
	return nil
}

func cameraUnavailable(dir string, err error) error {
	return &models.SealError{
		Code:  models.ErrCodeCamera,
		Phase: "capture",
		Err:   fmt.Errorf("%w: %s: %v", models.ErrCameraUnavailable, dir, err),
	}
}
