package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/config"
	"github.com/choudarykvsp/ferry/internal/journal"
)

var (
	journalMachineFlag string
	journalLimitFlag   int
	journalPruneDays   int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the operation journal",
	Long: `Show recent transport operations (exec, put, get, ...) recorded in
the SQLite journal, newest first.`,
	RunE: runJournal,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journal entries older than --days",
	RunE:  runJournalPrune,
}

func init() {
	journalCmd.Flags().StringVar(&journalMachineFlag, "machine", "", "Only entries for this machine")
	journalCmd.Flags().IntVar(&journalLimitFlag, "limit", 50, "Maximum entries to show")
	journalPruneCmd.Flags().IntVar(&journalPruneDays, "days", 30, "Keep entries newer than this many days")
	journalCmd.AddCommand(journalPruneCmd)
	rootCmd.AddCommand(journalCmd)
}

// mustOpenJournal opens the journal read path, exits on error. Unlike
// the best-effort write path, reads should fail loudly.
func mustOpenJournal() *journal.Journal {
	path := config.JournalPath()
	if path == "" {
		exitWithError(ExitConfigError, "cannot determine journal path")
	}
	j, err := journal.Open(path)
	if err != nil {
		exitWithError(ExitError, "opening journal: %v", err)
	}
	return j
}

func runJournal(cmd *cobra.Command, args []string) error {
	j := mustOpenJournal()
	defer j.Close()

	var entries []journal.Entry
	var err error
	if journalMachineFlag != "" {
		entries, err = j.ByMachine(journalMachineFlag, journalLimitFlag)
	} else {
		entries, err = j.Recent(journalLimitFlag)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		for _, e := range entries {
			status := "ok"
			if e.Error != "" {
				status = "error"
			} else if e.ExitCode != 0 {
				status = "exit " + strconv.Itoa(e.ExitCode)
			}
			outputHuman("%s  %-12s %-6s %-8s %s\n",
				e.StartedAt.Format(time.DateTime), e.Machine, e.Kind, status, e.Detail)
		}
		return nil
	}
	return outputJSON(journalResponse{Entries: entries})
}

type journalResponse struct {
	Entries []journal.Entry `json:"entries"`
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	j := mustOpenJournal()
	defer j.Close()

	cutoff := time.Now().AddDate(0, 0, -journalPruneDays)
	n, err := j.Prune(cutoff)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("pruned %d entries older than %d days\n", n, journalPruneDays)
		return nil
	}
	return outputJSON(pruneResponse{Pruned: n, Days: journalPruneDays})
}

type pruneResponse struct {
	Pruned int64 `json:"pruned"`
	Days   int   `json:"days"`
}
