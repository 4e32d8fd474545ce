package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/echoseal/internal/config"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the seal history",
	Long: `History lists seals created and read on this machine. Entries hold
fingerprints and sizes only, never messages, tokens or passwords.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyPruneCmd = &cobra.Command{
	Use:     "prune",
	Short:   "Remove old history entries",
	Example: `  echoseal history prune --older-than 720h`,
	Args:    cobra.NoArgs,
	RunE:    runHistoryPrune,
}

var historyMigrateCmd = &cobra.Command{
	Use:     "migrate <json|sqlite>",
	Short:   "Copy the history into another backend",
	Example: `  echoseal history migrate sqlite`,
	Args:    cobra.ExactArgs(1),
	RunE:    runHistoryMigrate,
}

var (
	historyKind      string
	historyLimit     int
	historyOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyPruneCmd, historyMigrateCmd)

	historyListCmd.Flags().StringVar(&historyKind, "kind", "",
		"Only show created or recovered entries")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum entries to show (0 for all)")

	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour,
		"Remove entries older than this")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.List(state.Filter{Kind: models.RecordKind(historyKind), Limit: historyLimit})
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(records)
		return nil
	}

	if len(records) == 0 {
		printInfo("No seals recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tPROTECTED\tOUTCOME\tFINGERPRINT\tFILE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.Protected,
			orDash(string(r.Outcome)), orDash(r.Fingerprint), r.File)
	}
	return w.Flush()
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	removed, err := history.Prune(time.Now().Add(-historyOlderThan))
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "removed": removed})
		return nil
	}
	printSuccess("Removed %d entries", removed)
	return nil
}

func runHistoryMigrate(cmd *cobra.Command, args []string) error {
	target := config.StateConfig{Backend: args[0], Path: cfg.State.Path}
	if target.Backend == cfg.State.Backend {
		return fmt.Errorf("history already uses %s", target.Backend)
	}

	source, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := state.Open(target, logger)
	if err != nil {
		return err
	}
	defer dest.Close()

	if err := source.Migrate(dest); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "backend": target.Backend})
		return nil
	}
	printSuccess("History copied to the %s backend; set state.backend to use it", target.Backend)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
