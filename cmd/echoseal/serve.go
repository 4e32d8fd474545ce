package main

import (
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/echoseal/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the seal HTTP API",
	Long: `Serve exposes seal creation and recovery over HTTP:

  POST /create-seal  multipart message|audio, password, background
  POST /unseal       multipart image, password
  GET  /seals/{name}  download a saved seal
  GET  /health
  GET  /ws/scan      live scan websocket`,
	Example: `  echoseal serve
  echoseal serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	creator, err := newCreator(cfg)
	if err != nil {
		return err
	}

	files, err := newSealStore(cfg, cfg.Seal.OutputDir)
	if err != nil {
		return err
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	srv := transport.NewServer(cfg.Server, cfg.Seal.MaxImageSize, transport.Deps{
		Creator: creator,
		Decoder: newDecoder(cfg),
		History: history,
		Files:   files,
	}, logger)

	if !jsonOutput {
		printInfo("Seal server on %s", cfg.Server.Addr)
	}
	return srv.ListenAndServe(cmd.Context())
}
