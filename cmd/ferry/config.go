package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage global configuration",
	Long:  `Get and set global ferry settings stored in ~/.config/ferry/config.yml.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the global configuration",
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a global configuration value",
	Long: `Set a configuration value. Keys:

  machines_path   path to machines.yml
  journal_path    path to the journal database
  max_concurrent  parallel connections for fleet runs
  dial_rate       connection attempts per second`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	if humanOutput {
		outputHuman("machines_path:  %s\n", config.MachinesPath())
		outputHuman("journal_path:   %s\n", config.JournalPath())
		outputHuman("max_concurrent: %d\n", cfg.MaxConcurrent)
		outputHuman("dial_rate:      %g\n", cfg.DialRate)
		return nil
	}
	return outputJSON(configResponse{
		MachinesPath:  config.MachinesPath(),
		JournalPath:   config.JournalPath(),
		MaxConcurrent: cfg.MaxConcurrent,
		DialRate:      cfg.DialRate,
	})
}

type configResponse struct {
	MachinesPath  string  `json:"machines_path"`
	JournalPath   string  `json:"journal_path"`
	MaxConcurrent int     `json:"max_concurrent,omitempty"`
	DialRate      float64 `json:"dial_rate,omitempty"`
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	switch key {
	case "machines_path":
		cfg.MachinesPath = config.ExpandTilde(value)
	case "journal_path":
		cfg.JournalPath = config.ExpandTilde(value)
	case "max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			exitWithError(ExitError, "max_concurrent must be a positive integer")
		}
		cfg.MaxConcurrent = n
	case "dial_rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			exitWithError(ExitError, "dial_rate must be a positive number")
		}
		cfg.DialRate = f
	default:
		exitWithError(ExitError, "unknown config key %q", key)
	}

	if err := cfg.Save(); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("set %s = %s\n", key, value)
		return nil
	}
	return outputJSON(StatusResponse{Status: "updated", Path: config.GlobalConfigPath()})
}
