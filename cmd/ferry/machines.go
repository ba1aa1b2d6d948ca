package main

import (
	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/machine"
)

func init() {
	rootCmd.AddCommand(machinesCmd)
}

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "List the expanded fleet from machines.yml",
	Long:  `List every machine after expanding brace patterns like "node{01..08}".`,
	RunE:  runMachines,
}

func runMachines(cmd *cobra.Command, args []string) error {
	cfg, machines := mustLoadFleet()

	if humanOutput {
		for _, m := range machines {
			line := m.Name
			if m.User != "" {
				line = m.User + "@" + line
			}
			outputHuman("%s\n", line)
		}
		return nil
	}
	return outputJSON(machinesResponse{
		Machines:  machines,
		ProxyJump: cfg.SSH.ProxyJump,
	})
}

type machinesResponse struct {
	Machines  []machine.Machine `json:"machines"`
	ProxyJump string            `json:"proxy_jump,omitempty"`
}
