package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/echoseal/internal/config"
	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/transport"
)

var version = "dev"

var (
	cfgFile    string
	logLevel   string
	jsonOutput bool

	cfg    *config.Config
	logger *events.Logger
)

var rootCmd = &cobra.Command{
	Use:   "echoseal",
	Short: "Hide short messages in QR seals",
	Long: `EchoSeal turns a short message into a QR seal, optionally protected
by a password, and reads seals back from images, a watched directory of
camera frames or a running seal server.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: ./echoseal.json or ~/.config/echoseal/)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Print results as JSON")
}

func main() {
	transport.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"code":    models.ErrorCode(err),
				"error":   err.Error(),
			})
		} else {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	loaded, err := loader.Load()
	if err != nil {
		return err
	}

	if logLevel != "" {
		loaded.Log.Level = strings.ToLower(logLevel)
		if err := loaded.Validate(); err != nil {
			return err
		}
	}

	logger, err = events.NewLogger(&loaded.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)

	if used := loader.ConfigFileUsed(); used != "" {
		logger.WithField("file", used).Debug("Loaded config")
	}

	cfg = loaded
	cmd.SetContext(events.WithLogger(cmd.Context(), logger))
	return nil
}
