package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/journal"
)

func init() {
	rootCmd.AddCommand(putCmd)
}

var putCmd = &cobra.Command{
	Use:   "put <machine> <local> <remote>",
	Short: "Upload a file to a machine",
	Long: `Upload a local file to a machine over SFTP.

The local path is made absolute before transfer. The remote path is
relative to the login directory unless absolute.

Example:
  ferry put node01 results.tar.gz scratch/results.tar.gz`,
	Args: cobra.ExactArgs(3),
	RunE: runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	machineName, localPath, remotePath := args[0], args[1], args[2]

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
	n, err := tr.Put(abs, remotePath)
	entry := journal.Entry{
		Machine: machineName, Kind: journal.KindPut,
		Detail: abs + " -> " + remotePath, Bytes: n,
		StartedAt: start, Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		record(j, entry)
		exitWithError(ExitError, "%v", err)
	}
	record(j, entry)

	if humanOutput {
		outputHuman("uploaded %s to %s:%s (%d bytes)\n", localPath, machineName, remotePath, n)
		return nil
	}
	return outputJSON(StatusResponse{Status: "uploaded", Machine: machineName, Path: remotePath, Bytes: n})
}
