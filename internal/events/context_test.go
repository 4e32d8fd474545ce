package events_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/echoseal/internal/events"
)

func TestFromContext(t *testing.T) {
	logger := events.FromContext(context.Background())
	assert.NotNil(t, logger)
}

func TestWithLogger(t *testing.T) {
	logger := events.Discard()

	ctx := events.WithLogger(context.Background(), logger)
	assert.Same(t, logger, events.FromContext(ctx))
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := events.WithLogger(context.Background(), events.NewTestLogger(events.InfoLevel, "json", &buf))

	ctx = events.WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", events.GetRequestID(ctx))

	events.FromContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}

func TestWithSealID(t *testing.T) {
	var buf bytes.Buffer
	ctx := events.WithLogger(context.Background(), events.NewTestLogger(events.InfoLevel, "json", &buf))

	ctx = events.WithSealID(ctx, "seal-456")
	assert.Equal(t, "seal-456", events.GetSealID(ctx))

	events.FromContext(ctx).Info("created")
	assert.Contains(t, buf.String(), `"seal_id":"seal-456"`)
}

func TestContextIDsEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, events.GetRequestID(ctx))
	assert.Empty(t, events.GetSealID(ctx))
}

func TestSetDefault(t *testing.T) {
	original := events.FromContext(context.Background())
	t.Cleanup(func() { events.SetDefault(original) })

	custom := events.Discard()
	events.SetDefault(custom)

	assert.Same(t, custom, events.FromContext(context.Background()))
}
