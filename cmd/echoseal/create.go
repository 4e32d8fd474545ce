package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/storage"
)

var createCmd = &cobra.Command{
	Use:   "create [message]",
	Short: "Create a QR seal from a message or a voice recording",
	Long: `Create renders a message as a QR seal image. With a password the
message is encrypted first and can only be read back with the same
password. Without one the seal holds the plain message.

Audio recordings are transcribed with seal.transcribe_command.`,
	Example: `  echoseal create "meet at dawn" --password swordfish
  echoseal create --audio note.wav --prompt --background photo.jpg
  echoseal create "hello" --out hello.png`,
	Args: cobra.ArbitraryArgs,
	RunE: runCreate,
}

var (
	createPassword   string
	createPrompt     bool
	createAudio      string
	createBackground string
	createOut        string
)

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createPassword, "password", "p", "",
		"Protect the seal with a password (or set "+PasswordEnv+")")
	createCmd.Flags().BoolVar(&createPrompt, "prompt", false,
		"Prompt for the password")
	createCmd.Flags().StringVarP(&createAudio, "audio", "a", "",
		"Voice recording to transcribe instead of a message")
	createCmd.Flags().StringVarP(&createBackground, "background", "b", "",
		"Image to place behind the code")
	createCmd.Flags().StringVarP(&createOut, "out", "o", "",
		"Output file (default: a new file in seal.output_dir)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	password, err := resolvePassword(createPassword, createPrompt)
	if err != nil {
		return err
	}

	req := seal.CreateRequest{
		Message:  strings.Join(args, " "),
		Password: password,
	}

	if createAudio != "" {
		f, err := os.Open(createAudio)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer f.Close()
		req.Audio = f
	}

	if createBackground != "" {
		var bg image.Image
		bg, err = qr.OpenImage(createBackground)
		if err != nil {
			return fmt.Errorf("background: %w", err)
		}
		req.Background = bg
	}

	creator, err := newCreator(cfg)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	s, err := creator.Create(ctx, req)
	if err != nil {
		return err
	}

	dir, name := cfg.Seal.OutputDir, storage.SealFileName(s.ID, s.CreatedAt)
	if createOut != "" {
		dir, name = filepath.Dir(createOut), filepath.Base(createOut)
	}

	files, err := newSealStore(cfg, dir)
	if err != nil {
		return err
	}
	if createOut != "" {
		files.SetConflictStrategy(storage.ConflictOverwrite)
	}

	path, err := files.SavePNG(name, s.Image)
	if err != nil {
		return &models.SealError{Code: models.ErrCodeStorage, Phase: "save", Err: err}
	}

	history, err := openHistory(cfg)
	if err != nil {
		logger.WithError(err).Warn("Seal history unavailable")
	} else {
		defer history.Close()
		recordHistory(history, s.Record(filepath.Base(path)))
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":      true,
			"id":           s.ID,
			"file":         path,
			"protected":    s.Protected,
			"token_length": len(s.Token),
			"fingerprint":  models.Fingerprint(s.Token),
		})
		return nil
	}

	printSuccess("Seal saved to %s", path)
	if s.Protected {
		printInfo("Protected with a password (%d byte token)", len(s.Token))
	} else {
		printWarning("Seal is not password protected; anyone can read it")
	}
	return nil
}
