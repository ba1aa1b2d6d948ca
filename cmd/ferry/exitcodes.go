package main

// Exit codes shared by all subcommands.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing machines.yml, unknown machine)
	ExitDataError   = 3 // Data error (malformed input, failed checks)
	ExitSSHError    = 4 // Could not connect to the machine
	ExitRemoteError = 5 // Remote command exited nonzero
)
