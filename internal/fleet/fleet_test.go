package fleet

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/choudarykvsp/ferry/internal/machine"
	"github.com/choudarykvsp/ferry/internal/transport"
)

// fakeTransport is a canned Transport for fleet tests.
type fakeTransport struct {
	execResult *transport.ExecResult
	execErr    error
	openErr    error
	delay      time.Duration
	onExec     func()
}

func (f *fakeTransport) Open(ctx context.Context) error { return f.openErr }
func (f *fakeTransport) Close() error                   { return nil }
func (f *fakeTransport) Getcwd() string                 { return "/" }
func (f *fakeTransport) Chdir(string) error             { return nil }
func (f *fakeTransport) Normalize(p string) (string, error) {
	return p, nil
}
func (f *fakeTransport) MkDir(string) error               { return nil }
func (f *fakeTransport) RmDir(string) error               { return nil }
func (f *fakeTransport) IsDir(string) (bool, error)       { return false, nil }
func (f *fakeTransport) IsFile(string) (bool, error)      { return false, nil }
func (f *fakeTransport) Chmod(string, os.FileMode) error  { return nil }
func (f *fakeTransport) Remove(string) error              { return nil }
func (f *fakeTransport) ListDir(string) ([]string, error) { return nil, nil }
func (f *fakeTransport) Stat(string) (*transport.FileAttr, error) {
	return nil, nil
}
func (f *fakeTransport) Put(string, string) (int64, error) { return 0, nil }
func (f *fakeTransport) Get(string, string) (int64, error) { return 0, nil }
func (f *fakeTransport) Copy(context.Context, string, string, bool) (string, error) {
	return "", nil
}

func (f *fakeTransport) Exec(ctx context.Context, command string, opts transport.ExecOptions) (*transport.ExecResult, error) {
	if f.onExec != nil {
		f.onExec()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.execResult != nil {
		return f.execResult, nil
	}
	return &transport.ExecResult{Stdout: "ran: " + command}, nil
}

func namedMachines(names ...string) []machine.Machine {
	machines := make([]machine.Machine, len(names))
	for i, n := range names {
		machines[i] = machine.Machine{Name: n}
	}
	return machines
}

func TestRun_ResultsInInputOrder(t *testing.T) {
	machines := namedMachines("c", "a", "b")
	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		return &fakeTransport{delay: time.Millisecond}, nil
	}

	report := Run(context.Background(), dial, machines, "uptime", Options{DialRate: 1000})

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	for i, name := range []string{"c", "a", "b"} {
		if report.Results[i].Machine != name {
			t.Errorf("result %d machine = %q, want %q", i, report.Results[i].Machine, name)
		}
	}
	if report.Command != "uptime" {
		t.Errorf("report command = %q", report.Command)
	}
}

func TestRun_FailureDoesNotCancelPeers(t *testing.T) {
	machines := namedMachines("good", "bad", "alsogood")
	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		if m.Name == "bad" {
			return nil, fmt.Errorf("cannot reach %s", m.Name)
		}
		return &fakeTransport{}, nil
	}

	report := Run(context.Background(), dial, machines, "true", Options{DialRate: 1000})

	if report.Results[0].Status != "ok" || report.Results[2].Status != "ok" {
		t.Errorf("expected peers ok, got %+v", report.Results)
	}
	if report.Results[1].Status != "failed" {
		t.Errorf("expected bad to fail, got %+v", report.Results[1])
	}
	if report.Results[1].Error == "" {
		t.Error("expected failure error message")
	}
}

func TestRun_OpenFailure(t *testing.T) {
	machines := namedMachines("m")
	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		return &fakeTransport{openErr: fmt.Errorf("handshake failed")}, nil
	}

	report := Run(context.Background(), dial, machines, "true", Options{DialRate: 1000})

	if report.Results[0].Status != "failed" {
		t.Errorf("expected failed, got %+v", report.Results[0])
	}
}

func TestRun_NonzeroExitIsStillOK(t *testing.T) {
	machines := namedMachines("m")
	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		return &fakeTransport{execResult: &transport.ExecResult{ExitCode: 2, Stderr: "boom"}}, nil
	}

	report := Run(context.Background(), dial, machines, "false", Options{DialRate: 1000})

	res := report.Results[0]
	if res.Status != "ok" {
		t.Errorf("status = %q, want ok", res.Status)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", res.ExitCode)
	}
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		ft := &fakeTransport{}
		ft.onExec = func() {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
		}
		return ft, nil
	}

	machines := namedMachines("a", "b", "c", "d", "e", "f", "g", "h")
	Run(context.Background(), dial, machines, "true", Options{MaxConcurrent: 2, DialRate: 10000})

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds bound 2", peak)
	}
	if peak == 0 {
		t.Error("expected at least one execution")
	}
}

func TestRun_PerMachineTiming(t *testing.T) {
	slow := 50 * time.Millisecond
	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		if m.Name == "slow" {
			return &fakeTransport{delay: slow}, nil
		}
		return &fakeTransport{}, nil
	}

	before := time.Now()
	report := Run(context.Background(), dial, namedMachines("fast", "slow"), "true", Options{DialRate: 1000})

	fast, slowRes := report.Results[0], report.Results[1]
	if fast.Started.Before(before) || slowRes.Started.Before(before) {
		t.Errorf("start times not set: %v, %v", fast.Started, slowRes.Started)
	}
	if slowRes.Duration < slow {
		t.Errorf("slow duration = %v, want >= %v", slowRes.Duration, slow)
	}
	// Each result reflects its own machine's work, not the whole run.
	if fast.Duration >= slowRes.Duration {
		t.Errorf("fast duration %v should be below slow duration %v", fast.Duration, slowRes.Duration)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dial := func(ctx context.Context, m machine.Machine) (transport.Transport, error) {
		return &fakeTransport{}, nil
	}

	// A low rate forces limiter.Wait to notice the canceled context.
	report := Run(ctx, dial, namedMachines("a", "b"), "true", Options{DialRate: 0.001})

	for _, res := range report.Results {
		if res.Status != "failed" {
			t.Errorf("expected failure under canceled context, got %+v", res)
		}
	}
}
