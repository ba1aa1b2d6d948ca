// Package main provides the ferry CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/config"
	"github.com/choudarykvsp/ferry/internal/journal"
	"github.com/choudarykvsp/ferry/internal/machine"
	"github.com/choudarykvsp/ferry/internal/transport"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	// Load .env if present; real env vars take precedence
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ferry",
	Short: "Run commands and move files across a fleet of machines",
	Long: `ferry runs commands and moves files on remote machines over SSH.

Core features:
  - Remote command execution with an emulated working directory
  - SFTP file transfer and filesystem operations
  - Fleet-wide parallel runs from a machines.yml definition
  - A SQLite journal of every operation for provenance
  - Credits (AUTHORS) file checking

Machines are defined in machines.yml; the special machine name "local"
targets the local host without SSH. All commands output JSON by default
for agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// mustLoadFleet loads and expands machines.yml, exits on error.
func mustLoadFleet() (*machine.Config, []machine.Machine) {
	path := config.MachinesPath()
	if path == "" {
		exitWithError(ExitConfigError, "cannot determine machines.yml path")
	}

	cfg, err := machine.LoadConfig(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
			os.Exit(ExitConfigError)
		}
		exitWithError(ExitConfigError, "%v", err)
	}

	machines, err := machine.Expand(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg, machines
}

// mustMachine resolves a machine by name, exits with the available names
// on a miss. The name "local" maps to the local host.
func mustMachine(name string) (machine.Machine, machine.SSHSettings) {
	if isLocalName(name) {
		return machine.Machine{Name: name}, machine.SSHSettings{}
	}

	cfg, machines := mustLoadFleet()
	m, ok := machine.Find(machines, name)
	if !ok {
		exitWithError(ExitConfigError, "unknown machine %q. Available machines: %v", name, machine.Names(machines))
	}
	return m, cfg.SSH
}

func isLocalName(name string) bool {
	return name == "local" || name == "localhost"
}

// dialTransport creates a transport for the machine. The caller must
// Close it.
func dialTransport(m machine.Machine, ssh machine.SSHSettings) (transport.Transport, error) {
	if isLocalName(m.Name) {
		return transport.NewLocal(), nil
	}
	return transport.NewSSH(m.SSHOptions(ssh))
}

// mustOpenTransport dials and opens a transport to the named machine,
// exits on error.
func mustOpenTransport(ctx context.Context, name string) transport.Transport {
	m, ssh := mustMachine(name)

	tr, err := dialTransport(m, ssh)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := tr.Open(ctx); err != nil {
		tr.Close()
		exitWithError(ExitSSHError, "%v", err)
	}
	return tr
}

// openJournal opens the operation journal. Journaling is best-effort:
// a nil journal disables recording rather than failing the command.
func openJournal() *journal.Journal {
	path := config.JournalPath()
	if path == "" {
		return nil
	}
	j, err := journal.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: journal disabled: %v\n", err)
		return nil
	}
	return j
}

// record appends to the journal when it is available.
func record(j *journal.Journal, e journal.Entry) {
	if j == nil {
		return
	}
	if err := j.Record(e); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording operation: %v\n", err)
	}
}
