// Package integration exercises cross-package flows: transport
// operations recorded in the journal, and credits files on disk.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/choudarykvsp/ferry/internal/authors"
	"github.com/choudarykvsp/ferry/internal/fleet"
	"github.com/choudarykvsp/ferry/internal/journal"
	"github.com/choudarykvsp/ferry/internal/machine"
	"github.com/choudarykvsp/ferry/internal/transport"
)

func TestTransferRecordedInJournal(t *testing.T) {
	ctx := context.Background()

	tr := transport.NewLocal()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	workDir := t.TempDir()
	if err := tr.Chdir(workDir); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(src, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	start := time.Now()
	n, err := tr.Put(src, "payload.bin")
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(journal.Entry{
		Machine: "local", Kind: journal.KindPut,
		Detail: src + " -> payload.bin", Bytes: n,
		StartedAt: start, Duration: time.Since(start),
	}); err != nil {
		t.Fatal(err)
	}

	res, err := tr.Exec(ctx, "wc -c < payload.bin", transport.ExecOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Stdout) != "10" {
		t.Errorf("remote size = %q, want 10", strings.TrimSpace(res.Stdout))
	}
	if err := j.Record(journal.Entry{
		Machine: "local", Kind: journal.KindExec,
		Detail: "wc -c < payload.bin", ExitCode: res.ExitCode,
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := j.ByMachine("local", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}

	var sawPut bool
	for _, e := range entries {
		if e.Kind == journal.KindPut {
			sawPut = true
			if e.Bytes != 10 {
				t.Errorf("put bytes = %d, want 10", e.Bytes)
			}
		}
	}
	if !sawPut {
		t.Error("expected a put entry in the journal")
	}
}

func TestFleetRunOverLocalTransports(t *testing.T) {
	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		return transport.NewLocal(), nil
	}
	machines := []machine.Machine{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	report := fleet.Run(context.Background(), dial, machines, "echo fleet-run", fleet.Options{DialRate: 1000})

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	for _, res := range report.Results {
		if res.Status != "ok" {
			t.Errorf("%s: status %q (%s)", res.Machine, res.Status, res.Error)
			continue
		}
		if strings.TrimSpace(res.Stdout) != "fleet-run" {
			t.Errorf("%s: stdout = %q", res.Machine, res.Stdout)
		}
	}
}

func TestCreditsFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AUTHORS.txt")
	content := `####################
Current team
####################

* Alice Rivers (Institute for Advanced Plumbing)
* Bob Marsh

####################
Contributors
####################

* Carol Stone
* Bob Marsh
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := authors.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}

	report := authors.Check(doc)
	if !report.Valid {
		t.Errorf("expected valid credits file, got %+v", report.Problems)
	}
	if report.Sections != 2 {
		t.Errorf("sections = %d, want 2", report.Sections)
	}
	if report.Entries != 4 {
		t.Errorf("entries = %d, want 4", report.Entries)
	}
}
