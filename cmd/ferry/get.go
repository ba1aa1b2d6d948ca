package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/journal"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <machine> <remote> <local>",
	Short: "Download a file from a machine",
	Long: `Download a remote file over SFTP.

Example:
  ferry get node01 scratch/results.tar.gz results.tar.gz`,
	Args: cobra.ExactArgs(3),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	machineName, remotePath, localPath := args[0], args[1], args[2]

	abs, err := filepath.Abs(localPath)
	if err != nil {
		exitWithError(ExitError, "resolving %s: %v", localPath, err)
	}

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	n, err := tr.Get(remotePath, abs)
	entry := journal.Entry{
		Machine: machineName, Kind: journal.KindGet,
		Detail: remotePath + " -> " + abs, Bytes: n,
		StartedAt: start, Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		record(j, entry)
		exitWithError(ExitError, "%v", err)
	}
	record(j, entry)

	if humanOutput {
		outputHuman("downloaded %s:%s to %s (%d bytes)\n", machineName, remotePath, localPath, n)
		return nil
	}
	return outputJSON(StatusResponse{Status: "downloaded", Machine: machineName, Path: localPath, Bytes: n})
}
