package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lsCmd)
}

var lsCmd = &cobra.Command{
	Use:   "ls <machine> [path]",
	Short: "List a remote directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	machineName := args[0]
	path := "."
	if len(args) == 2 {
		path = args[1]
	}

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	names, err := tr.ListDir(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		for _, name := range names {
			outputHuman("%s\n", name)
		}
		return nil
	}
	return outputJSON(lsResponse{Machine: machineName, Path: path, Entries: names})
}

type lsResponse struct {
	Machine string   `json:"machine"`
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
}
