package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/journal"
)

var cpDereferenceFlag bool

func init() {
	cpCmd.Flags().BoolVar(&cpDereferenceFlag, "dereference", false, "Copy symlink targets instead of the links")
	rootCmd.AddCommand(cpCmd)
}

var cpCmd = &cobra.Command{
	Use:   "cp <machine> <src> <dst>",
	Short: "Copy a file or directory on the machine itself",
	Long: `Copy src to dst on the machine, recursively, without moving data
through the local host.

Example:
  ferry cp node01 scratch/run1 scratch/run1.bak`,
	Args: cobra.ExactArgs(3),
	RunE: runCp,
}

func runCp(cmd *cobra.Command, args []string) error {
	machineName, src, dst := args[0], args[1], args[2]

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	warning, err := tr.Copy(cmd.Context(), src, dst, cpDereferenceFlag)
	entry := journal.Entry{
		Machine: machineName, Kind: journal.KindCopy,
		Detail: src + " -> " + dst, Warning: warning,
		StartedAt: start, Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		record(j, entry)
		exitWithError(ExitError, "%v", err)
	}
	record(j, entry)

	if humanOutput {
		outputHuman("copied %s:%s to %s\n", machineName, src, dst)
		if warning != "" {
			outputHuman("warning: %s\n", warning)
		}
		return nil
	}
	return outputJSON(StatusResponse{Status: "copied", Machine: machineName, Path: dst, Warning: warning})
}
