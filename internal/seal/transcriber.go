package seal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// CommandTranscriber runs an external speech-to-text program. The audio is
// staged in a temporary file whose path is appended to Args; the program's
// standard output is the transcript.
type CommandTranscriber struct {
	Args    []string
	TempDir string
}

// NewCommandTranscriber parses a command line such as "whisper-cli -m base".
func NewCommandTranscriber(command, tempDir string) (*CommandTranscriber, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("empty transcribe command")
	}
	return &CommandTranscriber{Args: args, TempDir: tempDir}, nil
}

// Transcribe stages audio and runs the command. The staged file is removed
// on every path.
func (t *CommandTranscriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	tmp, err := os.CreateTemp(t.TempDir, "audio-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := io.Copy(tmp, audio); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("stage audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage audio: %w", err)
	}

	args := append(append([]string{}, t.Args[1:]...), path)
	cmd := exec.CommandContext(ctx, t.Args[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %s: %w: %s", t.Args[0], err, msg)
		}
		return "", fmt.Errorf("run %s: %w", t.Args[0], err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
