package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHOptions configure an SSH transport.
type SSHOptions struct {
	Host           string
	Port           int    // defaults to 22
	User           string // defaults to the current OS user
	ProxyJump      string // optional jump host
	ConnectTimeout int    // seconds, defaults to 10
	// KnownHosts is the known_hosts file used for host key verification.
	// Defaults to ~/.ssh/known_hosts.
	KnownHosts string
	// InsecureHostKey disables host key verification. Only acceptable on
	// trusted networks with managed machines.
	InsecureHostKey bool
}

// SSH is a Transport over an SSH connection with an SFTP file channel.
// Authentication goes through the running SSH agent.
type SSH struct {
	opts SSHOptions

	agentConn net.Conn // connection to the SSH agent, closed in Close
	signers   []ssh.Signer
	username  string

	client     *ssh.Client
	jumpClient *ssh.Client
	sftp       *sftp.Client
	cwd        string
	isOpen     bool
}

// NewSSH prepares an SSH transport for the given machine. The SSH agent
// must be running and hold at least one key; the connection itself is
// deferred to Open.
func NewSSH(opts SSHOptions) (*SSH, error) {
	authSock := os.Getenv("SSH_AUTH_SOCK")
	if authSock == "" {
		return nil, fmt.Errorf("SSH agent not running. Start with `eval $(ssh-agent)` and add keys with `ssh-add`")
	}

	conn, err := net.Dial("unix", authSock)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to SSH agent at %s: %w", authSock, err)
	}

	agentClient := agent.NewClient(conn)

	keys, err := agentClient.List()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("listing SSH agent keys: %w", err)
	}
	if len(keys) == 0 {
		conn.Close()
		return nil, fmt.Errorf("SSH agent has no keys. Add keys with `ssh-add`")
	}

	signers, err := agentClient.Signers()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("getting SSH agent signers: %w", err)
	}

	username := opts.User
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	return &SSH{
		opts:      opts,
		agentConn: conn,
		signers:   signers,
		username:  username,
	}, nil
}

// Open dials the machine (optionally via ProxyJump), opens the SFTP
// channel, and pins the working directory to the normalized remote ".".
func (s *SSH) Open(ctx context.Context) error {
	timeout := time.Duration(s.opts.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hostKeys, err := s.hostKeyCallback()
	if err != nil {
		return err
	}

	clientConfig := &ssh.ClientConfig{
		User:            s.username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(s.signers...)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	if s.opts.ProxyJump != "" {
		s.client, s.jumpClient, err = s.dialViaProxy(ctx, clientConfig, timeout)
	} else {
		s.client, err = dialSSH(ctx, s.addr(), clientConfig, timeout)
	}
	if err != nil {
		return s.wrapSSHError(err)
	}

	ftp, err := sftp.NewClient(s.client)
	if err != nil {
		s.client.Close()
		s.client = nil
		if s.jumpClient != nil {
			s.jumpClient.Close()
			s.jumpClient = nil
		}
		return fmt.Errorf("opening SFTP channel on %s: %w", s.opts.Host, err)
	}
	s.sftp = ftp

	// Pin the cwd to a concrete path so it is never empty.
	cwd, err := ftp.RealPath(".")
	if err != nil {
		s.Close()
		return fmt.Errorf("resolving remote working directory: %w", err)
	}
	s.cwd = cwd

	s.isOpen = true
	return nil
}

// Close releases the SFTP channel, the SSH connections, and the agent
// connection.
func (s *SSH) Close() error {
	s.isOpen = false
	if s.sftp != nil {
		s.sftp.Close()
		s.sftp = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.jumpClient != nil {
		s.jumpClient.Close()
		s.jumpClient = nil
	}
	if s.agentConn != nil {
		err := s.agentConn.Close()
		s.agentConn = nil
		return err
	}
	return nil
}

// String describes the connection target.
func (s *SSH) String() string {
	target := s.opts.Host
	if s.username != "" {
		target = s.username + "@" + target
	}
	if s.opts.Port != 0 && s.opts.Port != 22 {
		target = fmt.Sprintf("%s:%d", target, s.opts.Port)
	}
	return fmt.Sprintf("SSH(%s)", target)
}

func (s *SSH) addr() string {
	port := s.opts.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(port))
}

// hostKeyCallback builds the host key policy: known_hosts verification
// unless InsecureHostKey is set.
func (s *SSH) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.opts.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khPath := s.opts.KnownHosts
	if khPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory for known_hosts: %w", err)
		}
		khPath = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(khPath)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts at %s: %w", khPath, err)
	}
	return cb, nil
}

// dialSSH is ssh.Dial with context support for the TCP stage.
func dialSSH(ctx context.Context, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(ncc, chans, reqs), nil
}

// dialViaProxy connects to the machine through the ProxyJump host.
// Returns both the target client and the jump client; Close handles both.
func (s *SSH) dialViaProxy(ctx context.Context, config *ssh.ClientConfig, timeout time.Duration) (client *ssh.Client, jumpClient *ssh.Client, err error) {
	proxyConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            config.Auth,
		HostKeyCallback: config.HostKeyCallback,
		Timeout:         timeout,
	}

	proxyAddr := s.opts.ProxyJump
	if !strings.Contains(proxyAddr, ":") {
		proxyAddr += ":22"
	}

	jumpClient, err = dialSSH(ctx, proxyAddr, proxyConfig, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot reach proxy %s: %w", s.opts.ProxyJump, err)
	}

	targetConn, err := jumpClient.Dial("tcp", s.addr())
	if err != nil {
		jumpClient.Close()
		return nil, nil, fmt.Errorf("cannot reach %s through proxy %s: %w", s.opts.Host, s.opts.ProxyJump, err)
	}

	ncc, chans, reqs, err := ssh.NewClientConn(targetConn, s.addr(), config)
	if err != nil {
		targetConn.Close()
		jumpClient.Close()
		return nil, nil, fmt.Errorf("SSH handshake with %s failed: %w", s.opts.Host, err)
	}

	return ssh.NewClient(ncc, chans, reqs), jumpClient, nil
}

// ensureOpen guards operations that need the channel.
func (s *SSH) ensureOpen() error {
	if !s.isOpen {
		return ErrNotOpen
	}
	return nil
}

// resolve maps path into the emulated working directory.
func (s *SSH) resolve(p string) string {
	if p == "" || path.IsAbs(p) {
		return p
	}
	return path.Join(s.cwd, p)
}

// Getcwd returns the emulated working directory. Open pins it, so it is
// never empty on an open transport.
func (s *SSH) Getcwd() string {
	return s.cwd
}

// Chdir changes the emulated working directory. An empty path leaves the
// cwd unchanged. The target must be a readable directory, otherwise the
// cd prefix used by Exec would fail with a confusing exit status later.
func (s *SSH) Chdir(p string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if p == "" {
		return nil
	}

	target, err := s.sftp.RealPath(s.resolve(p))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", p, err)
	}
	if _, err := s.sftp.ReadDir(target); err != nil {
		return fmt.Errorf("changing directory to %s: %w", p, err)
	}

	s.cwd = target
	return nil
}

// Normalize resolves a path to its absolute remote form.
func (s *SSH) Normalize(p string) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	return s.sftp.RealPath(s.resolve(p))
}

// MkDir creates a directory. Fails if it already exists.
func (s *SSH) MkDir(p string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.sftp.Mkdir(s.resolve(p)); err != nil {
		return fmt.Errorf("creating directory %s: %w", p, err)
	}
	return nil
}

// RmDir removes an empty directory.
func (s *SSH) RmDir(p string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.sftp.RemoveDirectory(s.resolve(p)); err != nil {
		return fmt.Errorf("removing directory %s: %w", p, err)
	}
	return nil
}

// IsDir reports whether path is a directory. Empty and nonexistent paths
// report false; an empty string would otherwise be mapped to the cwd.
func (s *SSH) IsDir(p string) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	if p == "" {
		return false, nil
	}
	info, err := s.sftp.Stat(s.resolve(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err // typically a permission error
	}
	return info.IsDir(), nil
}

// IsFile reports whether path is a regular file. Empty and nonexistent
// paths report false.
func (s *SSH) IsFile(p string) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	if p == "" {
		return false, nil
	}
	info, err := s.sftp.Stat(s.resolve(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Chmod changes the mode of path. An empty path is rejected.
func (s *SSH) Chmod(p string, mode os.FileMode) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("chmod: empty path")
	}
	if err := s.sftp.Chmod(s.resolve(p), mode); err != nil {
		return fmt.Errorf("chmod %s: %w", p, err)
	}
	return nil
}

// Remove deletes a file.
func (s *SSH) Remove(p string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.sftp.Remove(s.resolve(p)); err != nil {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}

// ListDir returns the entry names of a directory.
func (s *SSH) ListDir(p string) ([]string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	infos, err := s.sftp.ReadDir(s.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p, err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

// Stat returns the attributes of path without following symlinks.
func (s *SSH) Stat(p string) (*FileAttr, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	info, err := s.sftp.Lstat(s.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}

	attr := &FileAttr{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	if st, ok := info.Sys().(*sftp.FileStat); ok {
		attr.UID = int(st.UID)
		attr.GID = int(st.GID)
		attr.AccessTime = time.Unix(int64(st.Atime), 0)
	}
	return attr, nil
}

// Put copies a local file to the machine. The local path must be absolute.
func (s *SSH) Put(localPath, remotePath string) (int64, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	if !filepath.IsAbs(localPath) {
		return 0, fmt.Errorf("local path must be absolute: %s", localPath)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := s.sftp.Create(s.resolve(remotePath))
	if err != nil {
		return 0, fmt.Errorf("creating remote %s: %w", remotePath, err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("uploading %s: %w", localPath, err)
	}
	return n, nil
}

// Get copies a remote file to the local filesystem. The local path must
// be absolute.
func (s *SSH) Get(remotePath, localPath string) (int64, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	if !filepath.IsAbs(localPath) {
		return 0, fmt.Errorf("local path must be absolute: %s", localPath)
	}

	src, err := s.sftp.Open(s.resolve(remotePath))
	if err != nil {
		return 0, fmt.Errorf("opening remote %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", localPath, err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", remotePath, err)
	}
	return n, nil
}

// Copy duplicates src to dst on the machine via cp. A nonzero exit is an
// error; stderr on a successful exit is returned as a warning only.
func (s *SSH) Copy(ctx context.Context, src, dst string, dereference bool) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	if src == "" {
		return "", fmt.Errorf("copy: source must be a non-empty path")
	}
	if dst == "" {
		return "", fmt.Errorf("copy: destination must be a non-empty path")
	}

	res, err := s.Exec(ctx, copyCommand(src, dst, dereference), ExecOptions{})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("cp exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stderr), nil
}

// Exec runs a shell command in the working directory and waits for its
// exit status. The command inherits the emulated cwd via a cd prefix.
func (s *SSH) Exec(ctx context.Context, command string, opts ExecOptions) (*ExecResult, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("creating SSH session on %s: %w", s.opts.Host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	if opts.CombineStderr {
		session.Stderr = &stdout
	} else {
		session.Stderr = &stderr
	}
	if opts.Stdin != nil {
		session.Stdin = opts.Stdin
	}

	if err := session.Start(prefixCwd(s.cwd, command)); err != nil {
		return nil, fmt.Errorf("starting command on %s: %w", s.opts.Host, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return nil, ctx.Err()
	case err = <-done:
	}

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running command on %s: %w", s.opts.Host, err)
		}
		result.ExitCode = exitErr.ExitStatus()
	}
	return result, nil
}

// wrapSSHError produces actionable error messages based on SSH error types.
func (s *SSH) wrapSSHError(err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "no supported methods remain"):
		return fmt.Errorf("SSH authentication failed for %s as %s. Check ~/.ssh/config and ensure your key is authorized", s.opts.Host, s.username)
	case strings.Contains(errStr, "knownhosts: key is unknown"):
		return fmt.Errorf("host key for %s is not in known_hosts. Connect once with `ssh %s` to record it", s.opts.Host, s.opts.Host)
	case strings.Contains(errStr, "i/o timeout") || strings.Contains(errStr, "connection timed out"):
		if s.opts.ProxyJump != "" && strings.Contains(errStr, s.opts.ProxyJump) {
			return fmt.Errorf("cannot reach proxy %s: connection timed out", s.opts.ProxyJump)
		}
		return fmt.Errorf("connection to %s timed out", s.opts.Host)
	case strings.Contains(errStr, "connection refused"):
		return fmt.Errorf("connection refused by %s — is SSH running on the machine?", s.opts.Host)
	default:
		return fmt.Errorf("SSH error connecting to %s: %w", s.opts.Host, err)
	}
}
