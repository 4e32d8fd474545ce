package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/storage"
	"github.com/TheMichaelB/echoseal/internal/transport"
)

var sealsCmd = &cobra.Command{
	Use:   "seals",
	Short: "Manage saved seal images",
	Long: `Seals manages the images in seal.output_dir: the seals created on
this machine plus any imported or fetched from a server.`,
}

var sealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved seals, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSealsList,
}

var sealsImportCmd = &cobra.Command{
	Use:     "import <image>",
	Short:   "Copy a seal image into the output directory",
	Example: `  echoseal seals import ~/Downloads/seal.png`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSealsImport,
}

var sealsFetchCmd = &cobra.Command{
	Use:     "fetch <name>",
	Short:   "Download a seal saved on a seal server",
	Example: `  echoseal seals fetch sonic_seal_20240501_093015_3f2a9c1e.png --server http://localhost:8000`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSealsFetch,
}

var sealsRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Short:   "Delete a saved seal",
	Aliases: []string{"remove"},
	Args:    cobra.ExactArgs(1),
	RunE:    runSealsRemove,
}

var sealsServer string

func init() {
	rootCmd.AddCommand(sealsCmd)
	sealsCmd.AddCommand(sealsListCmd, sealsImportCmd, sealsFetchCmd, sealsRemoveCmd)

	sealsFetchCmd.Flags().StringVar(&sealsServer, "server", "http://localhost:8000",
		"Seal server base URL")
}

func outputStore() (*storage.SealStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return newSealStore(cfg, cfg.Seal.OutputDir)
}

func runSealsList(cmd *cobra.Command, args []string) error {
	files, err := outputStore()
	if err != nil {
		return err
	}

	list, err := files.List()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(list)
		return nil
	}

	if len(list) == 0 {
		printInfo("No seals in %s", files.BaseDir())
		return nil
	}

	printInfo("Seals in %s", files.BaseDir())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SAVED\tSIZE\tNAME")
	for _, f := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.ModTime.Local().Format("2006-01-02 15:04:05"), f.Size, f.Name)
	}
	return w.Flush()
}

func runSealsImport(cmd *cobra.Command, args []string) error {
	files, err := outputStore()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open seal: %w", err)
	}
	defer f.Close()

	path, err := importSeal(files, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "file": path})
		return nil
	}
	printSuccess("Seal saved to %s", path)
	return nil
}

func runSealsFetch(cmd *cobra.Command, args []string) error {
	files, err := outputStore()
	if err != nil {
		return err
	}

	client := transport.NewClient(sealsServer, logger)
	png, err := client.FetchSeal(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	path, err := importSeal(files, args[0], bytes.NewReader(png))
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "file": path, "size": len(png)})
		return nil
	}
	printSuccess("Seal saved to %s", path)
	return nil
}

func runSealsRemove(cmd *cobra.Command, args []string) error {
	files, err := outputStore()
	if err != nil {
		return err
	}

	exists, err := files.Exists(args[0])
	if err != nil {
		return err
	}
	if !exists {
		return &models.SealError{Code: models.ErrCodeNotFound, Phase: "remove", Err: fmt.Errorf("%w: %s", models.ErrSealNotFound, args[0])}
	}

	if err := files.Delete(args[0]); err != nil {
		return &models.SealError{Code: models.ErrCodeStorage, Phase: "remove", Err: err}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "file": args[0]})
		return nil
	}
	printSuccess("Removed %s", args[0])
	return nil
}

// importSeal stores an image under name, refusing anything that does not
// sniff as an image or exceeds seal.max_image_size.
func importSeal(files storage.SealFiles, name string, r io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read seal: %w", err)
	}
	if models.DetectMedia(name, head[:n]) != models.MediaImage {
		return "", &models.SealError{Code: models.ErrCodeInvalidImage, Phase: "import", Err: fmt.Errorf("%w: %s", models.ErrInvalidImage, name)}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind seal: %w", err)
	}

	path, err := files.WriteStream(name, r)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", &models.SealError{Code: models.ErrCodePayloadTooBig, Phase: "import", Err: err}
		}
		return "", &models.SealError{Code: models.ErrCodeStorage, Phase: "import", Err: err}
	}
	return path, nil
}
