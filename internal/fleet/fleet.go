// Package fleet runs a command across many machines in parallel.
package fleet

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/choudarykvsp/ferry/internal/machine"
	"github.com/choudarykvsp/ferry/internal/transport"
)

// DefaultMaxConcurrent is the bounded semaphore size for parallel runs.
const DefaultMaxConcurrent = 5

// DefaultDialRate is the default connection attempts per second.
const DefaultDialRate = 10.0

// DialFunc opens a transport to a machine.
type DialFunc func(ctx context.Context, m machine.Machine) (transport.Transport, error)

// Options tune a fleet run.
type Options struct {
	MaxConcurrent int     // defaults to DefaultMaxConcurrent
	DialRate      float64 // dials per second, defaults to DefaultDialRate
}

// Result is one machine's outcome. A machine that connected and ran the
// command is "ok" even with a nonzero exit code; "failed" means the
// command never ran there.
type Result struct {
	Machine  string        `json:"machine"`
	Status   string        `json:"status"` // "ok" or "failed"
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started_at"`
	Duration time.Duration `json:"duration"`
}

// RunReport is the top-level JSON output of a fleet run.
type RunReport struct {
	Command string   `json:"command"`
	Results []Result `json:"results"`
}

// Run executes command on every machine with bounded concurrency and a
// shared dial rate limit. Results come back in input order; one
// machine's failure never cancels its peers.
func Run(ctx context.Context, dial DialFunc, machines []machine.Machine, command string, opts Options) RunReport {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	dialRate := opts.DialRate
	if dialRate <= 0 {
		dialRate = DefaultDialRate
	}
	limiter := rate.NewLimiter(rate.Limit(dialRate), 1)

	results := make([]Result, len(machines))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for i, m := range machines {
		wg.Add(1)
		go func(idx int, m machine.Machine) {
			defer wg.Done()
			sem <- struct{}{}        // acquire semaphore
			defer func() { <-sem }() // release semaphore
			results[idx] = runOne(ctx, dial, limiter, m, command)
		}(i, m)
	}

	wg.Wait()
	return RunReport{Command: command, Results: results}
}

// runOne dials a single machine and executes the command there. The
// result carries that machine's own start time and elapsed duration.
func runOne(ctx context.Context, dial DialFunc, limiter *rate.Limiter, m machine.Machine, command string) (res Result) {
	start := time.Now()
	defer func() {
		res.Started = start
		res.Duration = time.Since(start)
	}()

	if err := limiter.Wait(ctx); err != nil {
		return Result{Machine: m.Name, Status: "failed", Error: err.Error()}
	}

	tr, err := dial(ctx, m)
	if err != nil {
		return Result{Machine: m.Name, Status: "failed", Error: err.Error()}
	}
	defer tr.Close()

	if err := tr.Open(ctx); err != nil {
		return Result{Machine: m.Name, Status: "failed", Error: err.Error()}
	}

	execRes, err := tr.Exec(ctx, command, transport.ExecOptions{})
	if err != nil {
		return Result{Machine: m.Name, Status: "failed", Error: err.Error()}
	}

	return Result{
		Machine:  m.Name,
		Status:   "ok",
		ExitCode: execRes.ExitCode,
		Stdout:   execRes.Stdout,
		Stderr:   execRes.Stderr,
	}
}
