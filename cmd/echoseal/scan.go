package main

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/state"
	"github.com/TheMichaelB/echoseal/internal/transport"
)

var scanCmd = &cobra.Command{
	Use:   "scan [frames-dir]",
	Short: "Watch camera frames and read seals aloud",
	Long: `Scan watches a directory that a camera writes frames into. Every new
seal found is decrypted and announced once; holding the same seal in view
does not repeat it.

With --server the frames are streamed to a seal server's live scan
endpoint instead of being decoded locally.`,
	Example: `  echoseal scan ./frames --password swordfish
  echoseal scan --speak-command "espeak"
  echoseal scan ./frames --server http://localhost:8000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var (
	scanPassword     string
	scanConsume      bool
	scanSpeakCommand string
	scanServer       string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPassword, "password", "p", "",
		"Password for protected seals (will prompt if needed)")
	scanCmd.Flags().BoolVar(&scanConsume, "consume", false,
		"Delete frames once read (default from scanner.consume)")
	scanCmd.Flags().StringVar(&scanSpeakCommand, "speak-command", "",
		"Text-to-speech program reading stdin (default from scanner.speak_command)")
	scanCmd.Flags().StringVar(&scanServer, "server", "",
		"Stream frames to a seal server")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := cfg.Scanner.SourceDir
	if len(args) == 1 {
		dir = args[0]
	}
	if cmd.Flags().Changed("consume") {
		cfg.Scanner.Consume = scanConsume
	}
	if scanSpeakCommand != "" {
		cfg.Scanner.SpeakCommand = scanSpeakCommand
	}

	source, err := seal.NewDirectorySource(dir, cfg.Scanner.Consume)
	if err != nil {
		return err
	}
	speaker := seal.NewCommandSpeaker(cfg.Scanner.SpeakCommand)

	if scanServer != "" {
		return runRemoteScan(ctx, source, speaker)
	}

	history, err := openHistory(cfg)
	if err != nil {
		logger.WithError(err).Warn("Seal history unavailable")
	} else {
		defer history.Close()
	}

	scanner := seal.NewScanner(source, newDecoder(cfg),
		seal.WithPasswords(lazyPassword(scanPassword)),
		seal.WithSpeaker(speaker),
		seal.WithPollInterval(cfg.Scanner.PollInterval),
		seal.WithCooldown(cfg.Scanner.Cooldown),
		seal.WithHandler(func(ev seal.ScanEvent) {
			reportScan(history, ev)
		}),
	)

	if !jsonOutput {
		printInfo("Watching %s for seals (Ctrl+C to stop)", dir)
	}
	return scanner.Run(ctx)
}

func reportScan(history state.Store, ev seal.ScanEvent) {
	name := ev.Frame

	if ev.Err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"frame":   name,
				"code":    models.ErrorCode(ev.Err),
				"error":   ev.Err.Error(),
			})
		} else {
			printError("%s: %v", name, ev.Err)
		}
		return
	}

	rec := ev.Recovery
	recordHistory(history, models.SealRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindRecovered,
		File:        name,
		Protected:   rec.Protected,
		TokenLength: rec.TokenLength,
		Fingerprint: rec.Fingerprint,
		Strategy:    rec.Strategy,
		Outcome:     rec.State,
		CreatedAt:   ev.At,
	})

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":   true,
			"frame":     name,
			"message":   rec.Message,
			"protected": rec.Protected,
			"strategy":  rec.Strategy,
		})
	}
}

func runRemoteScan(ctx context.Context, source seal.FrameSource, speaker seal.Speaker) error {
	client := transport.NewScanClient(scanServer, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	password, err := resolvePassword(scanPassword, false)
	if err != nil {
		return err
	}
	if password != "" {
		if err := client.SendPassword(password); err != nil {
			return err
		}
	}

	go func() {
		for ev := range client.Events() {
			switch ev.Type {
			case models.ScanTypeMessage:
				if err := speaker.Speak(ctx, seal.Announcement(ev.Message)); err != nil {
					logger.WithError(err).Warn("Failed to announce message")
				}
			case models.ScanTypeError:
				printError("%s", ev.Error)
			}
		}
	}()

	if !jsonOutput {
		printInfo("Streaming frames to %s (Ctrl+C to stop)", scanServer)
	}

	ticker := time.NewTicker(cfg.Scanner.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-client.Errors():
			return err
		case <-ticker.C:
		}

		frame, err := nextFrame(ctx, source)
		if err != nil {
			return err
		}
		if frame == nil {
			continue
		}

		var buf bytes.Buffer
		if err := qr.EncodePNG(&buf, frame.Image); err != nil {
			logger.WithError(err).WithField("frame", frame.Name).Warn("Failed to encode frame")
			continue
		}
		if err := client.SendFrame(buf.Bytes()); err != nil {
			return err
		}
	}
}

// nextFrame reads one frame for the remote scan. Only camera loss ends the
// scan; unreadable frames are logged and skipped.
func nextFrame(ctx context.Context, source seal.FrameSource) (*seal.Frame, error) {
	frame, err := source.Next(ctx)
	if err == nil {
		return frame, nil
	}
	if errors.Is(err, models.ErrCameraUnavailable) {
		return nil, err
	}
	if ctx.Err() == nil {
		logger.WithError(err).Debug("Skipping unreadable frame")
	}
	return nil, nil
}
