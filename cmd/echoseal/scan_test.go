package main

import (
	"context"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/state"
)

type scriptedSource struct {
	frames []*seal.Frame
	errs   []error
	calls  int
}

func (s *scriptedSource) Next(ctx context.Context) (*seal.Frame, error) {
	i := s.calls
	s.calls++
	if i >= len(s.frames) {
		return nil, nil
	}
	return s.frames[i], s.errs[i]
}

func TestNextFrameSkipsUnreadableFrames(t *testing.T) {
	logger = events.Discard()

	good := &seal.Frame{Name: "b.png", Image: image.NewGray(image.Rect(0, 0, 1, 1))}
	source := &scriptedSource{
		frames: []*seal.Frame{nil, good, nil},
		errs: []error{
			fmt.Errorf("read frame a.png: %w", models.ErrInvalidImage),
			nil,
			&models.SealError{Code: models.ErrCodeCamera, Phase: "capture", Err: models.ErrCameraUnavailable},
		},
	}
	ctx := context.Background()

	frame, err := nextFrame(ctx, source)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = nextFrame(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, "b.png", frame.Name)

	_, err = nextFrame(ctx, source)
	assert.ErrorIs(t, err, models.ErrCameraUnavailable)
}

func TestReportScanRecordsFrameName(t *testing.T) {
	logger = events.Discard()
	jsonOutput = true
	defer func() { jsonOutput = false }()

	history := state.NewMemoryStore()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	reportScan(history, seal.ScanEvent{
		Frame: "frame-0001.png",
		At:    at,
		Recovery: &seal.Recovery{
			Message:     "meet at dawn",
			Protected:   true,
			Strategy:    "binarized",
			TokenLength: 120,
			State:       models.StateDecrypted,
		},
	})
	reportScan(history, seal.ScanEvent{
		Frame: "frame-0002.png",
		At:    at,
		Err:   models.ErrWrongPassword,
	})

	records, err := history.List(state.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "frame-0001.png", records[0].File)
	assert.Equal(t, models.KindRecovered, records[0].Kind)
	assert.Equal(t, models.StateDecrypted, records[0].Outcome)
	assert.True(t, records[0].CreatedAt.Equal(at))
}
