package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/transport"
)

var unsealCmd = &cobra.Command{
	Use:   "unseal <image>",
	Short: "Read the message in a seal image",
	Long: `Unseal finds the QR seal in an image and recovers its message. A
password is only asked for when the seal is protected.

With --server the image is sent to a running seal server instead.`,
	Example: `  echoseal unseal photo.jpg
  echoseal unseal seal.png --password swordfish
  echoseal unseal seal.png --server http://localhost:8000`,
	Args: cobra.ExactArgs(1),
	RunE: runUnseal,
}

var (
	unsealPassword string
	unsealServer   string
	unsealStrategy string
)

func init() {
	rootCmd.AddCommand(unsealCmd)

	unsealCmd.Flags().StringVarP(&unsealPassword, "password", "p", "",
		"Seal password (will prompt if needed)")
	unsealCmd.Flags().StringVar(&unsealServer, "server", "",
		"Seal server URL, e.g. http://localhost:8000")
	unsealCmd.Flags().StringVar(&unsealStrategy, "strategy", "",
		"Only try one detection strategy: direct, padded or binarized")
}

// strategyLocator restricts a locator to one strategy.
type strategyLocator struct {
	locator *qr.Locator
	name    string
}

func (l strategyLocator) Locate(img image.Image) (*qr.Result, bool) {
	return l.locator.LocateWith(img, l.name)
}

func runUnseal(cmd *cobra.Command, args []string) error {
	if unsealServer != "" {
		return runRemoteUnseal(cmd, args[0])
	}

	ctx := cmd.Context()

	img, err := qr.OpenImage(args[0])
	if err != nil {
		return err
	}

	locator := newLocator(cfg)
	var finder seal.Locator = locator
	if unsealStrategy != "" {
		known := locator.Strategies()
		if !contains(known, unsealStrategy) {
			return fmt.Errorf("unknown strategy %q (want %s)", unsealStrategy, strings.Join(known, ", "))
		}
		finder = strategyLocator{locator: locator, name: unsealStrategy}
	}

	res, ok := finder.Locate(img)
	if !ok {
		return &models.SealError{Code: models.ErrCodeNoCodeFound, Phase: "locate", Err: models.ErrNoCodeFound}
	}

	decoder := newDecoder(cfg)
	rec, err := decoder.RecoverToken(ctx, res.Text, lazyPassword(unsealPassword))

	history, herr := openHistory(cfg)
	if herr != nil {
		logger.WithError(herr).Warn("Seal history unavailable")
	} else {
		defer history.Close()
	}

	if err != nil {
		if outcome := models.OutcomeOf(err); outcome == models.StateAccessDenied {
			recordHistory(history, models.SealRecord{
				ID:          uuid.NewString(),
				Kind:        models.KindRecovered,
				File:        filepath.Base(args[0]),
				Protected:   true,
				TokenLength: len(res.Text),
				Fingerprint: models.Fingerprint(res.Text),
				Strategy:    res.Strategy,
				Outcome:     outcome,
			})
		}
		return err
	}

	recordHistory(history, models.SealRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindRecovered,
		File:        filepath.Base(args[0]),
		Protected:   rec.Protected,
		TokenLength: rec.TokenLength,
		Fingerprint: rec.Fingerprint,
		Strategy:    res.Strategy,
		Outcome:     rec.State,
	})

	printRecovery(rec.Message, rec.Protected, res.Strategy)
	return nil
}

func runRemoteUnseal(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	client := transport.NewClient(unsealServer, logger,
		transport.WithTimeout(cfg.Server.RequestTimeout+10*time.Second))

	password, err := resolvePassword(unsealPassword, false)
	if err != nil {
		return err
	}

	send := func(password string) (*models.UnsealResponse, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		return client.Unseal(ctx, transport.Upload{Name: filepath.Base(path), Reader: f}, password)
	}

	resp, err := send(password)
	if errors.Is(err, models.ErrWrongPassword) && password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		if password, err = promptPassword("Seal password: "); err != nil {
			return err
		}
		resp, err = send(password)
	}
	if err != nil {
		return err
	}

	printRecovery(resp.Message, resp.Protected, resp.Strategy)
	return nil
}

func printRecovery(message string, protected bool, strategy string) {
	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":   true,
			"message":   message,
			"protected": protected,
			"strategy":  strategy,
		})
		return
	}

	if protected {
		printSuccess("Seal unlocked (%s)", strategy)
	} else {
		printSuccess("Seal read (%s)", strategy)
	}
	printMessage(message)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
