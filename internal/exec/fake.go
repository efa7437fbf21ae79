package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner serves canned results keyed by the full command line
// ("git status --porcelain") and records every call. Used by tests in
// packages that shell out to git or gh.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	result CmdResult
	err    error
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]fakeResponse)}
}

// On registers stdout and exit code for a command line.
func (f *FakeRunner) On(cmdline, stdout string, exitCode int) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = fakeResponse{result: CmdResult{Stdout: stdout, ExitCode: exitCode}}
	return f
}

// OnResult registers a full result, including stderr.
func (f *FakeRunner) OnResult(cmdline string, res CmdResult) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = fakeResponse{result: res}
	return f
}

// OnError registers an execution failure (e.g. binary not found) for a command line.
func (f *FakeRunner) OnError(cmdline string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = fakeResponse{err: err}
	return f
}

// Run implements CommandRunner. Unregistered commands fail with an error.
func (f *FakeRunner) Run(_ context.Context, name string, args []string, _ RunOpts) (CmdResult, error) {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmdline)

	resp, ok := f.responses[cmdline]
	if !ok {
		return CmdResult{}, fmt.Errorf("fake runner: unexpected command %q", cmdline)
	}
	return resp.result, resp.err
}

// Calls returns every command line run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times cmdline was run.
func (f *FakeRunner) CallCount(cmdline string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == cmdline {
			n++
		}
	}
	return n
}

// CountPrefix returns how many calls started with prefix (e.g. "git ").
func (f *FakeRunner) CountPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
