package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Compile-time interface checks.
var (
	_ Transport = (*SSH)(nil)
	_ Transport = (*Local)(nil)
)

// Local is a Transport over the local filesystem. It exists so callers
// that need a transport can run without a network, and it keeps the
// interface honest with a second implementation.
type Local struct {
	cwd    string
	isOpen bool
}

// NewLocal prepares a local transport. The connection itself is a no-op;
// the lifecycle still matters so Local behaves like any other transport.
func NewLocal() *Local {
	return &Local{}
}

// Open pins the working directory to the current directory.
func (l *Local) Open(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	l.cwd = cwd
	l.isOpen = true
	return nil
}

// Close marks the transport closed.
func (l *Local) Close() error {
	l.isOpen = false
	return nil
}

// String describes the transport.
func (l *Local) String() string {
	return "Local(localhost)"
}

func (l *Local) ensureOpen() error {
	if !l.isOpen {
		return ErrNotOpen
	}
	return nil
}

// resolve maps path into the emulated working directory.
func (l *Local) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.cwd, p)
}

// Getcwd returns the emulated working directory.
func (l *Local) Getcwd() string {
	return l.cwd
}

// Chdir changes the emulated working directory. An empty path is a no-op.
func (l *Local) Chdir(p string) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	if p == "" {
		return nil
	}

	target, err := filepath.Abs(l.resolve(p))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", p, err)
	}
	if _, err := os.ReadDir(target); err != nil {
		return fmt.Errorf("changing directory to %s: %w", p, err)
	}

	l.cwd = target
	return nil
}

// Normalize resolves a path to its absolute form.
func (l *Local) Normalize(p string) (string, error) {
	if err := l.ensureOpen(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(l.resolve(p))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	return abs, nil
}

// MkDir creates a directory. Fails if it already exists.
func (l *Local) MkDir(p string) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	if err := os.Mkdir(l.resolve(p), 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", p, err)
	}
	return nil
}

// RmDir removes an empty directory.
func (l *Local) RmDir(p string) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	target := l.resolve(p)
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("removing directory %s: %w", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("removing directory %s: not a directory", p)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("removing directory %s: %w", p, err)
	}
	return nil
}

// IsDir reports whether path is a directory; false for empty and
// nonexistent paths.
func (l *Local) IsDir(p string) (bool, error) {
	if err := l.ensureOpen(); err != nil {
		return false, err
	}
	if p == "" {
		return false, nil
	}
	info, err := os.Stat(l.resolve(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile reports whether path is a regular file; false for empty and
// nonexistent paths.
func (l *Local) IsFile(p string) (bool, error) {
	if err := l.ensureOpen(); err != nil {
		return false, err
	}
	if p == "" {
		return false, nil
	}
	info, err := os.Stat(l.resolve(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Chmod changes the mode of path. An empty path is rejected.
func (l *Local) Chmod(p string, mode os.FileMode) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("chmod: empty path")
	}
	if err := os.Chmod(l.resolve(p), mode); err != nil {
		return fmt.Errorf("chmod %s: %w", p, err)
	}
	return nil
}

// Remove deletes a file.
func (l *Local) Remove(p string) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	if err := os.Remove(l.resolve(p)); err != nil {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}

// ListDir returns the entry names of a directory.
func (l *Local) ListDir(p string) ([]string, error) {
	if err := l.ensureOpen(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Stat returns the attributes of path without following symlinks.
func (l *Local) Stat(p string) (*FileAttr, error) {
	if err := l.ensureOpen(); err != nil {
		return nil, err
	}
	info, err := os.Lstat(l.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}

	attr := &FileAttr{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	fillSysAttr(attr, info)
	return attr, nil
}

// Put copies a local file into the transport's filesystem. The source
// path must be absolute, matching the remote transports.
func (l *Local) Put(localPath, remotePath string) (int64, error) {
	if err := l.ensureOpen(); err != nil {
		return 0, err
	}
	if !filepath.IsAbs(localPath) {
		return 0, fmt.Errorf("local path must be absolute: %s", localPath)
	}
	return copyFile(localPath, l.resolve(remotePath))
}

// Get copies a file out of the transport's filesystem. The destination
// path must be absolute.
func (l *Local) Get(remotePath, localPath string) (int64, error) {
	if err := l.ensureOpen(); err != nil {
		return 0, err
	}
	if !filepath.IsAbs(localPath) {
		return 0, fmt.Errorf("local path must be absolute: %s", localPath)
	}
	return copyFile(l.resolve(remotePath), localPath)
}

// Copy duplicates src to dst via cp, the same code path the SSH
// transport uses on the remote side.
func (l *Local) Copy(ctx context.Context, src, dst string, dereference bool) (string, error) {
	if err := l.ensureOpen(); err != nil {
		return "", err
	}
	if src == "" {
		return "", fmt.Errorf("copy: source must be a non-empty path")
	}
	if dst == "" {
		return "", fmt.Errorf("copy: destination must be a non-empty path")
	}

	res, err := l.Exec(ctx, copyCommand(src, dst, dereference), ExecOptions{})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("cp exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stderr), nil
}

// Exec runs a shell command in the working directory and waits for its
// exit status. A nonzero exit is reported in the result, not as an error.
func (l *Local) Exec(ctx context.Context, command string, opts ExecOptions) (*ExecResult, error) {
	if err := l.ensureOpen(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = l.cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if opts.CombineStderr {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running command: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// copyFile copies src to dst, returning the number of bytes written.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copying to %s: %w", dst, err)
	}
	return n, nil
}
