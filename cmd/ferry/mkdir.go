package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/journal"
)

func init() {
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <machine> <path>",
	Short: "Create a remote directory",
	Long:  `Create a directory on a machine. Fails if it already exists.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runMkdir,
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <machine> <path>",
	Short: "Remove an empty remote directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runRmdir,
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return runDirOp(cmd, args, journal.KindMkdir, "created")
}

func runRmdir(cmd *cobra.Command, args []string) error {
	return runDirOp(cmd, args, journal.KindRmdir, "removed")
}

// runDirOp shares the mkdir/rmdir plumbing: open, act, journal, report.
func runDirOp(cmd *cobra.Command, args []string, kind, status string) error {
	machineName, path := args[0], args[1]

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	var err error
	if kind == journal.KindMkdir {
		err = tr.MkDir(path)
	} else {
		err = tr.RmDir(path)
	}

	entry := journal.Entry{
		Machine: machineName, Kind: kind, Detail: path,
		StartedAt: start, Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		record(j, entry)
		exitWithError(ExitError, "%v", err)
	}
	record(j, entry)

	if humanOutput {
		outputHuman("%s %s:%s\n", status, machineName, path)
		return nil
	}
	return outputJSON(StatusResponse{Status: status, Machine: machineName, Path: path})
}
