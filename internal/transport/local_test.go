package transport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// openLocal opens a local transport chdir'd into a fresh temp dir.
func openLocal(t *testing.T) (*Local, string) {
	t.Helper()
	l := NewLocal()
	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	dir := t.TempDir()
	if err := l.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	return l, dir
}

func TestLocal_NotOpen(t *testing.T) {
	l := NewLocal()

	if err := l.MkDir("x"); err != ErrNotOpen {
		t.Errorf("MkDir before Open: got %v, want ErrNotOpen", err)
	}
	if _, err := l.ListDir("."); err != ErrNotOpen {
		t.Errorf("ListDir before Open: got %v, want ErrNotOpen", err)
	}
	if _, err := l.Exec(context.Background(), "true", ExecOptions{}); err != ErrNotOpen {
		t.Errorf("Exec before Open: got %v, want ErrNotOpen", err)
	}

	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.MkDir("x"); err != ErrNotOpen {
		t.Errorf("MkDir after Close: got %v, want ErrNotOpen", err)
	}
}

func TestLocal_OpenSetsCwd(t *testing.T) {
	l := NewLocal()
	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if l.Getcwd() == "" {
		t.Error("expected non-empty cwd after Open")
	}
}

func TestLocal_ChdirEmptyIsNoop(t *testing.T) {
	l, dir := openLocal(t)

	if err := l.Chdir(""); err != nil {
		t.Fatal(err)
	}
	if l.Getcwd() != dir {
		t.Errorf("cwd changed on empty Chdir: %q", l.Getcwd())
	}
}

func TestLocal_MkDirIsDir(t *testing.T) {
	l, dir := openLocal(t)

	if err := l.MkDir("sub"); err != nil {
		t.Fatal(err)
	}

	ok, err := l.IsDir("sub")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected sub to be a directory")
	}

	// MkDir on an existing directory fails
	if err := l.MkDir("sub"); err == nil {
		t.Error("expected error creating existing directory")
	}

	if err := l.RmDir("sub"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub")); !os.IsNotExist(err) {
		t.Error("expected sub to be removed")
	}
}

func TestLocal_IsDirIsFile_EdgeCases(t *testing.T) {
	l, dir := openLocal(t)

	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantDir  bool
		wantFile bool
	}{
		{"empty path", "", false, false},
		{"missing path", "nope", false, false},
		{"directory", ".", true, false},
		{"regular file", "f.txt", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDir, err := l.IsDir(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if gotDir != tt.wantDir {
				t.Errorf("IsDir(%q) = %v, want %v", tt.path, gotDir, tt.wantDir)
			}
			gotFile, err := l.IsFile(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if gotFile != tt.wantFile {
				t.Errorf("IsFile(%q) = %v, want %v", tt.path, gotFile, tt.wantFile)
			}
		})
	}
}

func TestLocal_PutGetRoundTrip(t *testing.T) {
	l, dir := openLocal(t)

	src := filepath.Join(t.TempDir(), "src.txt")
	content := []byte("transport payload\n")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatal(err)
	}

	n, err := l.Put(src, "uploaded.txt")
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Errorf("Put wrote %d bytes, want %d", n, len(content))
	}

	dst := filepath.Join(t.TempDir(), "dst.txt")
	n, err = l.Get("uploaded.txt", dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Errorf("Get wrote %d bytes, want %d", n, len(content))
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("round trip mismatch: %q", got)
	}

	_ = dir
}

func TestLocal_PutRequiresAbsoluteLocalPath(t *testing.T) {
	l, _ := openLocal(t)

	if _, err := l.Put("relative.txt", "x"); err == nil {
		t.Error("expected error for relative local path in Put")
	}
	if _, err := l.Get("x", "relative.txt"); err == nil {
		t.Error("expected error for relative local path in Get")
	}
}

func TestLocal_ListDirRemove(t *testing.T) {
	l, dir := openLocal(t)

	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := l.ListDir(".")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %v", names)
	}

	if err := l.Remove("a.txt"); err != nil {
		t.Fatal(err)
	}
	names, err = l.ListDir(".")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "b.txt" {
		t.Errorf("expected only b.txt after Remove, got %v", names)
	}
}

func TestLocal_StatChmod(t *testing.T) {
	l, dir := openLocal(t)

	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}

	attr, err := l.Stat("f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if attr.Size != 5 {
		t.Errorf("Size = %d, want 5", attr.Size)
	}
	if attr.ModTime.IsZero() {
		t.Error("expected non-zero ModTime")
	}

	if err := l.Chmod("f.txt", 0600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	if err := l.Chmod("", 0600); err == nil {
		t.Error("expected error for empty path in Chmod")
	}
}

func TestLocal_ExecRunsInCwd(t *testing.T) {
	l, dir := openLocal(t)

	res, err := l.Exec(context.Background(), "pwd", ExecOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code %d, stderr: %s", res.ExitCode, res.Stderr)
	}
	got := strings.TrimSpace(res.Stdout)
	// The temp dir may be behind a symlink (e.g. /tmp on mac); resolve both.
	wantResolved, _ := filepath.EvalSymlinks(dir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != wantResolved {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestLocal_ExecExitCode(t *testing.T) {
	l, _ := openLocal(t)

	res, err := l.Exec(context.Background(), "exit 3", ExecOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestLocal_ExecStdin(t *testing.T) {
	l, _ := openLocal(t)

	res, err := l.Exec(context.Background(), "cat", ExecOptions{Stdin: strings.NewReader("fed via stdin")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "fed via stdin" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestLocal_ExecCombineStderr(t *testing.T) {
	l, _ := openLocal(t)

	res, err := l.Exec(context.Background(), "echo out; echo err >&2", ExecOptions{CombineStderr: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Stdout, "out") || !strings.Contains(res.Stdout, "err") {
		t.Errorf("expected combined output, got stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
	if res.Stderr != "" {
		t.Errorf("expected empty stderr when combined, got %q", res.Stderr)
	}
}

func TestLocal_ExecSeparateStderr(t *testing.T) {
	l, _ := openLocal(t)

	res, err := l.Exec(context.Background(), "echo out; echo err >&2", ExecOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestLocal_ExecCanceledContext(t *testing.T) {
	l, _ := openLocal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Exec(ctx, "sleep 5", ExecOptions{}); err == nil {
		t.Error("expected error from canceled context")
	}
}

func TestLocal_CopyFile(t *testing.T) {
	l, dir := openLocal(t)

	if err := os.WriteFile(filepath.Join(dir, "orig.txt"), []byte("copy me"), 0644); err != nil {
		t.Fatal(err)
	}

	warning, err := l.Copy(context.Background(), "orig.txt", "dup.txt", false)
	if err != nil {
		t.Fatal(err)
	}
	if warning != "" {
		t.Errorf("unexpected warning: %q", warning)
	}

	got, err := os.ReadFile(filepath.Join(dir, "dup.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "copy me" {
		t.Errorf("copied content = %q", got)
	}
}

func TestLocal_CopyDirectory(t *testing.T) {
	l, dir := openLocal(t)

	if err := os.MkdirAll(filepath.Join(dir, "tree", "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tree", "nested", "f"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Copy(context.Background(), "tree", "tree2", false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tree2", "nested", "f")); err != nil {
		t.Errorf("expected recursive copy: %v", err)
	}
}

func TestLocal_CopyEmptyPaths(t *testing.T) {
	l, _ := openLocal(t)

	if _, err := l.Copy(context.Background(), "", "dst", false); err == nil {
		t.Error("expected error for empty source")
	}
	if _, err := l.Copy(context.Background(), "src", "", false); err == nil {
		t.Error("expected error for empty destination")
	}
}

func TestLocal_CopyMissingSource(t *testing.T) {
	l, _ := openLocal(t)

	if _, err := l.Copy(context.Background(), "does-not-exist", "dst", false); err == nil {
		t.Error("expected error copying a missing source")
	}
}

func TestLocal_NormalizeRelative(t *testing.T) {
	l, dir := openLocal(t)

	got, err := l.Normalize("sub/../x")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "x") {
		t.Errorf("Normalize = %q, want %q", got, filepath.Join(dir, "x"))
	}
}
