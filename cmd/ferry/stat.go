package main

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/journal"
	"github.com/choudarykvsp/ferry/internal/transport"
)

func init() {
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(chmodCmd)
}

var statCmd = &cobra.Command{
	Use:   "stat <machine> <path>",
	Short: "Show attributes of a remote path",
	Long:  `Show size, ownership, mode, and times of a remote path (symlinks are not followed).`,
	Args:  cobra.ExactArgs(2),
	RunE:  runStat,
}

var chmodCmd = &cobra.Command{
	Use:   "chmod <machine> <mode> <path>",
	Short: "Change the mode of a remote path",
	Long: `Change the permission bits of a remote path. The mode is octal.

Example:
  ferry chmod node01 600 .ssh/authorized_keys`,
	Args: cobra.ExactArgs(3),
	RunE: runChmod,
}

func runStat(cmd *cobra.Command, args []string) error {
	machineName, path := args[0], args[1]

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	attr, err := tr.Stat(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	isDir, err := tr.IsDir(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	isFile, err := tr.IsFile(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("%s:%s\n  size: %d\n  mode: %s\n  uid/gid: %d/%d\n  modified: %s\n",
			machineName, path, attr.Size, attr.Mode, attr.UID, attr.GID,
			attr.ModTime.Format(time.RFC3339))
		return nil
	}
	return outputJSON(statResponse{
		Machine: machineName,
		Path:    path,
		Attr:    attr,
		IsDir:   isDir,
		IsFile:  isFile,
	})
}

type statResponse struct {
	Machine string              `json:"machine"`
	Path    string              `json:"path"`
	Attr    *transport.FileAttr `json:"attr"`
	IsDir   bool                `json:"is_dir"`
	IsFile  bool                `json:"is_file"`
}

func runChmod(cmd *cobra.Command, args []string) error {
	machineName, modeStr, path := args[0], args[1], args[2]

	mode, err := strconv.ParseUint(modeStr, 8, 32)
	if err != nil {
		exitWithError(ExitError, "invalid octal mode %q", modeStr)
	}

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	err = tr.Chmod(path, os.FileMode(mode))
	entry := journal.Entry{
		Machine:   machineName,
		Kind:      journal.KindChmod,
		Detail:    modeStr + " " + path,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		record(j, entry)
		exitWithError(ExitError, "%v", err)
	}
	record(j, entry)

	if humanOutput {
		outputHuman("chmod %s %s:%s\n", modeStr, machineName, path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "changed", Machine: machineName, Path: path})
}
