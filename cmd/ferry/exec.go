package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/config"
	"github.com/choudarykvsp/ferry/internal/fleet"
	"github.com/choudarykvsp/ferry/internal/journal"
	"github.com/choudarykvsp/ferry/internal/machine"
	"github.com/choudarykvsp/ferry/internal/transport"
)

var (
	execAllFlag           bool
	execDirFlag           string
	execStdinFlag         bool
	execCombineStderrFlag bool
	execMaxConcurrent     int
)

var execCmd = &cobra.Command{
	Use:   "exec [machine] -- <command...>",
	Short: "Run a command on a machine (or the whole fleet)",
	Long: `Run a shell command on a remote machine and wait for it.

The command runs in the transport's working directory (the login
directory, or --dir). With --all it runs on every machine in
machines.yml in parallel with bounded concurrency.

Examples:
  ferry exec node01 -- uptime
  ferry exec --all -- df -h /scratch
  cat input.txt | ferry exec node01 --stdin -- wc -l`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().BoolVar(&execAllFlag, "all", false, "Run on every machine in the fleet")
	execCmd.Flags().StringVar(&execDirFlag, "dir", "", "Remote directory to run in")
	execCmd.Flags().BoolVar(&execStdinFlag, "stdin", false, "Feed local stdin to the remote command")
	execCmd.Flags().BoolVar(&execCombineStderrFlag, "combine-stderr", false, "Merge stderr into stdout")
	execCmd.Flags().IntVar(&execMaxConcurrent, "max-concurrent", 0, "Parallel connections for --all (default 5)")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	if execAllFlag {
		return runExecAll(cmd.Context(), args)
	}

	if len(args) < 2 {
		exitWithError(ExitError, "usage: ferry exec <machine> -- <command...>")
	}
	machineName := args[0]
	command := strings.Join(args[1:], " ")

	tr := mustOpenTransport(cmd.Context(), machineName)
	defer tr.Close()

	if execDirFlag != "" {
		if err := tr.Chdir(execDirFlag); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	opts := transport.ExecOptions{CombineStderr: execCombineStderrFlag}
	if execStdinFlag {
		opts.Stdin = os.Stdin
	}

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	start := time.Now()
	res, err := tr.Exec(cmd.Context(), command, opts)
	if err != nil {
		record(j, journal.Entry{
			Machine: machineName, Kind: journal.KindExec, Detail: command,
			Error: err.Error(), StartedAt: start, Duration: time.Since(start),
		})
		exitWithError(ExitError, "%v", err)
	}
	record(j, journal.Entry{
		Machine: machineName, Kind: journal.KindExec, Detail: command,
		ExitCode: res.ExitCode, StartedAt: start, Duration: time.Since(start),
	})

	if humanOutput {
		if res.Stdout != "" {
			outputHuman("%s", res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
	} else {
		if err := outputJSON(execResponse{Machine: machineName, Command: command, Result: res}); err != nil {
			exitWithError(ExitError, "encoding JSON: %v", err)
		}
	}

	if res.ExitCode != 0 {
		os.Exit(ExitRemoteError)
	}
	return nil
}

type execResponse struct {
	Machine string                `json:"machine"`
	Command string                `json:"command"`
	Result  *transport.ExecResult `json:"result"`
}

func runExecAll(ctx context.Context, args []string) error {
	command := strings.Join(args, " ")

	cfg, machines := mustLoadFleet()

	global, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	opts := fleet.Options{MaxConcurrent: execMaxConcurrent, DialRate: global.DialRate}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = global.MaxConcurrent
	}

	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		return dialTransport(m, cfg.SSH)
	}

	j := openJournal()
	if j != nil {
		defer j.Close()
	}

	report := fleet.Run(ctx, dial, machines, command, opts)

	for _, res := range report.Results {
		record(j, journal.Entry{
			Machine: res.Machine, Kind: journal.KindExec, Detail: command,
			ExitCode: res.ExitCode, Error: res.Error,
			StartedAt: res.Started, Duration: res.Duration,
		})
	}

	if humanOutput {
		printFleetTable(report)
	} else {
		if err := outputJSON(report); err != nil {
			exitWithError(ExitError, "encoding JSON: %v", err)
		}
	}

	for _, res := range report.Results {
		if res.Status != "ok" || res.ExitCode != 0 {
			os.Exit(ExitRemoteError)
		}
	}
	return nil
}

// printFleetTable renders a fleet report as a compact per-machine listing.
func printFleetTable(report fleet.RunReport) {
	for _, res := range report.Results {
		switch {
		case res.Status != "ok":
			outputHuman("%-16s FAILED  %s\n", res.Machine, res.Error)
		case res.ExitCode != 0:
			outputHuman("%-16s exit %d\n", res.Machine, res.ExitCode)
		default:
			outputHuman("%-16s ok\n", res.Machine)
		}
		if out := strings.TrimSpace(res.Stdout); out != "" {
			for _, line := range strings.Split(out, "\n") {
				outputHuman("  %s\n", line)
			}
		}
	}
}
