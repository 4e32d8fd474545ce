package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockTranscriber mocks seal.Transcriber. The audio is drained before the
// call is recorded so expectations can match on its bytes.
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

// RecordingSpeaker collects announcements.
type RecordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (s *RecordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return nil
}

// Lines returns what has been spoken so far.
func (s *RecordingSpeaker) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}
