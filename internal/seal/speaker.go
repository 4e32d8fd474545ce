package seal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
)

// AnnouncementPrefix precedes every spoken message.
const AnnouncementPrefix = "Incoming transmission: "

// Speaker reads messages aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Announcement is the sentence spoken for a recovered message.
func Announcement(message string) string {
	return AnnouncementPrefix + message
}

// ConsoleSpeaker prints announcements instead of speaking them.
type ConsoleSpeaker struct {
	out io.Writer
	c   *color.Color
}

// NewConsoleSpeaker writes to w, or stdout when w is nil.
func NewConsoleSpeaker(w io.Writer) *ConsoleSpeaker {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSpeaker{out: w, c: color.New(color.FgMagenta, color.Bold)}
}

// Speak prints text on its own line.
func (s *ConsoleSpeaker) Speak(_ context.Context, text string) error {
	_, err := s.c.Fprintf(s.out, "🔊 %s\n", text)
	return err
}

// CommandSpeaker pipes text into a text-to-speech program such as
// "espeak" or "say", falling back to a console speaker when it fails.
type CommandSpeaker struct {
	Args     []string
	Fallback Speaker
}

// NewCommandSpeaker parses command; an empty command returns a console
// speaker on stdout.
func NewCommandSpeaker(command string) Speaker {
	args := strings.Fields(command)
	if len(args) == 0 {
		return NewConsoleSpeaker(nil)
	}
	return &CommandSpeaker{Args: args, Fallback: NewConsoleSpeaker(nil)}
}

// Speak runs the command with text on stdin and blocks until it finishes.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, s.Args[0], s.Args[1:]...)
	cmd.Stdin = strings.NewReader(text)

	if err := cmd.Run(); err != nil {
		if s.Fallback != nil {
			return s.Fallback.Speak(ctx, text)
		}
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}
