package seal_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/seal"
)

func TestCommandTranscriber(t *testing.T) {
	tmp := t.TempDir()
	tr, err := seal.NewCommandTranscriber("cat", tmp)
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), strings.NewReader("  the eagle has landed \n"))
	require.NoError(t, err)
	assert.Equal(t, "the eagle has landed", text)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommandTranscriberFailure(t *testing.T) {
	tmp := t.TempDir()
	tr, err := seal.NewCommandTranscriber("false", tmp)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), strings.NewReader("audio"))
	assert.Error(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = seal.NewCommandTranscriber("   ", tmp)
	assert.Error(t, err)
}
