package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/journal"
)

func init() {
	rootCmd.AddCommand(rmCmd)
}

var rmCmd = &cobra.Command{
	Use:   "rm <machine> <path>",
	Short: "Remove a remote file",
	Args:  cobra.ExactArgs(2),
	RunE:  runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	machineName, path := args[0], args[1]

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	err := tr.Remove(path)
	entry := journal.Entry{
		Machine: machineName, Kind: journal.KindRm, Detail: path,
		StartedAt: start, Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		record(j, entry)
		exitWithError(ExitError, "%v", err)
	}
	record(j, entry)

	if humanOutput {
		outputHuman("removed %s:%s\n", machineName, path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "removed", Machine: machineName, Path: path})
}
