package testutil

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/config"
	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/state"
	"github.com/TheMichaelB/echoseal/internal/storage"
	"github.com/TheMichaelB/echoseal/internal/transport"
)

// Env is a complete seal stack rooted in a temp directory.
type Env struct {
	Config  *config.Config
	Creator *seal.Creator
	Decoder *seal.Decoder
	History state.Store
	Files   *storage.SealStore
	Server  *httptest.Server
	Client  *transport.Client
}

// NewEnv builds the stack the serve command builds, on temp directories.
// Creator options such as a transcriber are passed through.
func NewEnv(t *testing.T, opts ...seal.CreatorOption) *Env {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Seal.OutputDir = filepath.Join(root, "output")
	cfg.Seal.TempDir = filepath.Join(root, "temp")
	cfg.Scanner.SourceDir = filepath.Join(root, "frames")
	cfg.State.Path = filepath.Join(root, "history")
	require.NoError(t, cfg.EnsureDirectories())
	require.NoError(t, os.MkdirAll(cfg.Scanner.SourceDir, 0755))

	logger := NewTestLogger()
	provider := crypto.NewProvider()

	history, err := state.Open(cfg.State, logger)
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	files, err := storage.NewSealStore(cfg.Seal.OutputDir, logger)
	require.NoError(t, err)

	env := &Env{
		Config:  cfg,
		Creator: seal.NewCreator(provider, opts...),
		Decoder: seal.NewDecoder(qr.NewLocator(qr.WithPadWidth(cfg.QR.PadWidth), qr.WithThreshold(cfg.QR.Threshold)), provider),
		History: history,
		Files:   files,
	}

	srv := transport.NewServer(cfg.Server, cfg.Seal.MaxImageSize, transport.Deps{
		Creator: env.Creator,
		Decoder: env.Decoder,
		History: history,
		Files:   files,
	}, logger)

	env.Server = httptest.NewServer(srv.Handler())
	t.Cleanup(env.Server.Close)
	env.Client = transport.NewClient(env.Server.URL, logger)

	return env
}
