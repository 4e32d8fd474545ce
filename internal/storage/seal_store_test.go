package storage_test

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/storage"
)

func newStore(t *testing.T) (*storage.SealStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSealStore(dir, events.Discard())
	require.NoError(t, err)
	return store, dir
}

func TestSealFileName(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)
	name := storage.SealFileName("3f2a9c1e-7b44-4d6a-9a51-0c2f5e8b1d77", at)
	assert.Equal(t, "sonic_seal_20240501_093015_3f2a9c1e.png", name)

	assert.Equal(t, "sonic_seal_20240501_093015_abc.png", storage.SealFileName("abc", at))
}

func TestSavePNG(t *testing.T) {
	store, dir := newStore(t)
	img := imaging.New(12, 12, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	path, err := store.SavePNG("seal.png", img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BaseDir(), "seal.png"), path)

	f, err := store.Open("seal.png")
	require.NoError(t, err)
	defer f.Close()

	decoded, err := qr.DecodeImage(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConflictStrategies(t *testing.T) {
	store, _ := newStore(t)
	img := imaging.New(2, 2, color.White)

	first, err := store.SavePNG("seal.png", img)
	require.NoError(t, err)

	second, err := store.SavePNG("seal.png", img)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "seal-1.png", filepath.Base(second))

	store.SetConflictStrategy(storage.ConflictError)
	_, err = store.SavePNG("seal.png", img)
	assert.ErrorIs(t, err, storage.ErrExists)

	store.SetConflictStrategy(storage.ConflictOverwrite)
	third, err := store.SavePNG("seal.png", img)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestWriteStreamLimit(t *testing.T) {
	store, dir := newStore(t)
	store.SetMaxFileSize(10)

	_, err := store.WriteStream("small.bin", strings.NewReader("0123456789"))
	require.NoError(t, err)

	_, err = store.WriteStream("big.bin", strings.NewReader("0123456789A"))
	assert.ErrorIs(t, err, storage.ErrTooLarge)

	exists, err := store.Exists("big.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPathSanitization(t *testing.T) {
	store, _ := newStore(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"plain name", "seal.png", false},
		{"directory traversal", "../seal.png", true},
		{"nested path", "sub/seal.png", true},
		{"absolute path", "/etc/passwd", true},
		{"empty", "", true},
		{"null byte", "seal\x00.png", true},
		{"dot", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.WriteStream(tt.path, strings.NewReader("x"))
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestListAndDelete(t *testing.T) {
	store, dir := newStore(t)
	base := time.Now().Add(-time.Hour)

	for i, name := range []string{"a.png", "b.png", "c.png"} {
		_, err := store.WriteStream(name, strings.NewReader("x"))
		require.NoError(t, err)
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, name), mod, mod))
	}
	_, err := store.WriteStream("notes.txt", strings.NewReader("x"))
	require.NoError(t, err)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "c.png", files[0].Name)
	assert.Equal(t, "a.png", files[2].Name)

	require.NoError(t, store.Delete("b.png"))
	require.NoError(t, store.Delete("b.png"))

	exists, err := store.Exists("b.png")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Open("b.png")
	assert.ErrorIs(t, err, models.ErrSealNotFound)
}

func TestConcurrentSaves(t *testing.T) {
	store, _ := newStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := store.WriteStream(fmt.Sprintf("concurrent-%d.bin", n), bytes.NewReader([]byte{byte(n)})); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("write error: %v", err)
	}

	for i := 0; i < 10; i++ {
		f, err := store.Open(fmt.Sprintf("concurrent-%d.bin", i))
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, data)
	}
}
