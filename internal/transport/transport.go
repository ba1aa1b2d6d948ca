// Package transport provides remote machine transports: command execution
// and file operations over a uniform interface.
package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"
)

// ErrNotOpen is returned when an operation runs on a transport whose
// channel has not been opened (or was already closed).
var ErrNotOpen = errors.New("transport is not open")

// FileAttr holds the attributes of a remote file returned by Stat.
type FileAttr struct {
	Size       int64       `json:"size"`
	UID        int         `json:"uid"`
	GID        int         `json:"gid"`
	Mode       os.FileMode `json:"mode"`
	AccessTime time.Time   `json:"access_time"`
	ModTime    time.Time   `json:"mod_time"`
}

// ExecResult is the outcome of a remote command execution.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// ExecOptions control command execution.
type ExecOptions struct {
	// Stdin, when non-nil, is fed to the remote command's standard input.
	Stdin io.Reader
	// CombineStderr merges stderr into stdout; Stderr is then empty.
	CombineStderr bool
}

// Transport abstracts command execution and file operations on a machine.
// All operations except Open return ErrNotOpen before Open succeeds.
// Paths are interpreted relative to the transport's working directory,
// which Open sets to a concrete path so Getcwd is never empty.
type Transport interface {
	// Open establishes the connection and the file channel.
	Open(ctx context.Context) error
	// Close releases the file channel and the connection.
	Close() error

	// Getcwd returns the emulated working directory.
	Getcwd() string
	// Chdir changes the working directory. An empty path is a no-op.
	// The new directory must be readable.
	Chdir(path string) error
	// Normalize resolves a path to its absolute remote form.
	Normalize(path string) (string, error)

	// MkDir creates a directory. Fails if it already exists.
	MkDir(path string) error
	// RmDir removes an empty directory.
	RmDir(path string) error
	// IsDir reports whether path is a directory. An empty or
	// nonexistent path reports false without error.
	IsDir(path string) (bool, error)
	// IsFile reports whether path is a regular file. An empty or
	// nonexistent path reports false without error.
	IsFile(path string) (bool, error)
	// Chmod changes the mode of path. An empty path is an error.
	Chmod(path string, mode os.FileMode) error
	// Remove deletes a file.
	Remove(path string) error
	// ListDir returns the entry names of a directory.
	ListDir(path string) ([]string, error)
	// Stat returns the attributes of path without following symlinks.
	Stat(path string) (*FileAttr, error)

	// Put copies a local file to the machine. The local path must be
	// absolute. Returns the number of bytes written.
	Put(localPath, remotePath string) (int64, error)
	// Get copies a remote file to the local filesystem. The local path
	// must be absolute. Returns the number of bytes written.
	Get(remotePath, localPath string) (int64, error)

	// Copy duplicates src to dst on the machine itself, recursively.
	// When dereference is true, symlink targets are copied instead of
	// the links. Returns any stderr produced on success as a warning.
	Copy(ctx context.Context, src, dst string, dereference bool) (warning string, err error)

	// Exec runs a shell command in the working directory and waits for
	// it to finish. A nonzero exit status is reported in the result,
	// not as an error.
	Exec(ctx context.Context, command string, opts ExecOptions) (*ExecResult, error)
}

// EscapeForShell quotes s so it is passed to a POSIX shell as a single
// literal word.
func EscapeForShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// prefixCwd wraps command so it runs inside cwd. With an empty cwd the
// command is returned unchanged.
func prefixCwd(cwd, command string) string {
	if cwd == "" {
		return command
	}
	return "cd " + EscapeForShell(cwd) + " && " + command
}

// copyCommand builds the remote copy invocation used by Copy.
func copyCommand(src, dst string, dereference bool) string {
	flags := "-r -f"
	if dereference {
		// -L rather than --dereference, which is missing on mac
		flags += " -L"
	}
	return "cp " + flags + " " + EscapeForShell(src) + " " + EscapeForShell(dst)
}
