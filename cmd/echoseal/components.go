package main

import (
	"fmt"

	"github.com/TheMichaelB/echoseal/internal/config"
	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/state"
	"github.com/TheMichaelB/echoseal/internal/storage"
)

func newLocator(c *config.Config) *qr.Locator {
	return qr.NewLocator(
		qr.WithPadWidth(c.QR.PadWidth),
		qr.WithThreshold(c.QR.Threshold),
		qr.WithTryHarder(c.QR.TryHarder),
	)
}

func newDecoder(c *config.Config) *seal.Decoder {
	return seal.NewDecoder(newLocator(c), crypto.NewProvider())
}

func newCreator(c *config.Config) (*seal.Creator, error) {
	level, err := qr.ParseLevel(c.QR.ErrorCorrection)
	if err != nil {
		return nil, err
	}

	opts := []seal.CreatorOption{
		seal.WithRenderer(qr.NewRenderer(level, c.QR.BoxSize, c.QR.Border)),
	}

	if c.Seal.TranscribeCommand != "" {
		t, err := seal.NewCommandTranscriber(c.Seal.TranscribeCommand, c.Seal.TempDir)
		if err != nil {
			return nil, fmt.Errorf("configure transcriber: %w", err)
		}
		opts = append(opts, seal.WithTranscriber(t))
	}

	return seal.NewCreator(crypto.NewProvider(), opts...), nil
}

func newSealStore(c *config.Config, dir string) (*storage.SealStore, error) {
	store, err := storage.NewSealStore(dir, logger)
	if err != nil {
		return nil, err
	}
	store.SetMaxFileSize(c.Seal.MaxImageSize)
	return store, nil
}

func openHistory(c *config.Config) (state.Store, error) {
	if err := c.EnsureDirectories(); err != nil {
		return nil, err
	}
	return state.Open(c.State, logger)
}

// recordHistory stores rec, warning instead of failing the command.
func recordHistory(history state.Store, rec models.SealRecord) {
	if history == nil {
		return
	}
	if err := history.Record(rec); err != nil {
		logger.WithError(err).WithField("record_id", rec.ID).Warn("Failed to record seal history")
	}
}
