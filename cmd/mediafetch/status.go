package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediafetch/pkg/checkpoint"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/ui"
)

var (
	statusRuns  int
	statusReset bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [key]",
	Short: "Show the run history of a collection",
	Long: `Show the recorded runs of a collection from the run journal: when each run
happened, what it fetched and which URLs failed. Without a key, list every
collection that has a journal. --reset forgets the history of one collection;
the fetch cache is left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVarP(&statusRuns, "runs", "n", 5, "number of recent runs to show")
	statusCmd.Flags().BoolVar(&statusReset, "reset", false, "delete the run history of the given key")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("the run journal is disabled in the configuration")
	}

	journal, err := checkpoint.NewManager(cfg.Journal.Directory, logger.GetLogger())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		if statusReset {
			return fmt.Errorf("--reset needs a collection key")
		}
		return listJournal(out, journal)
	}

	if statusReset {
		if !journal.Exists(args[0]) {
			ui.PrintWarning("No runs recorded for " + args[0])
			return nil
		}
		if err := journal.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Run history of " + args[0] + " deleted")
		return nil
	}

	cp, err := journal.Load(args[0])
	if err != nil {
		return err
	}
	if cp == nil {
		ui.PrintWarning("No runs recorded for " + args[0])
		return nil
	}
	printStatus(out, cp, statusRuns)
	return nil
}

// listJournal prints one line per journaled collection
func listJournal(out io.Writer, journal *checkpoint.Manager) error {
	keys, err := journal.Keys()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	for _, k := range keys {
		info, err := journal.GetCheckpointInfo(k)
		if err != nil || info == nil {
			fmt.Fprintf(out, "%-40s %s\n", k, ui.Red("unreadable"))
			continue
		}
		line := fmt.Sprintf("%-40s %3d runs, last %s", k, info["runs"], humanize.Time(info["updated_at"].(time.Time)))
		if failed, ok := info["last_failed"].(int); ok && failed > 0 {
			line += ui.Red(fmt.Sprintf(" (%d failed)", failed))
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func printStatus(out io.Writer, cp *checkpoint.Checkpoint, runs int) {
	fmt.Fprintf(out, "%s: %s files, %s in %d runs (last %s)\n",
		cp.CollectionKey,
		humanize.Comma(int64(cp.TotalDownloaded)),
		humanize.Bytes(uint64(cp.TotalBytes)),
		len(cp.Runs),
		humanize.Time(cp.UpdatedAt),
	)

	start := len(cp.Runs) - runs
	if start < 0 || runs <= 0 {
		start = 0
	}
	for i := len(cp.Runs) - 1; i >= start; i-- {
		r := cp.Runs[i]
		fmt.Fprintf(out, "\n  %s  %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), ui.Dim(r.JobID))
		fmt.Fprintf(out, "    planned %d, skipped %d, fetched %d (%s), failed %d, cancelled %d, took %s\n",
			r.Planned, r.Skipped, r.Succeeded, humanize.Bytes(uint64(r.BytesWritten)),
			r.Failed, r.Cancelled, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		for _, f := range r.Failures {
			fmt.Fprintf(out, "    %s %s %s\n", ui.Red("✗"), f.URL, ui.Dim(f.Status+": "+f.Message))
		}
	}
}
