/*
Copyright (c) 2023 Purple Clay

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package gittest provides fixtures for exercising the gitpoller package
// without shelling out to a real git binary, plus a real bare-repository
// fixture for integration-style coverage.
package gittest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ironforge-ci/gitpoller"
	"github.com/stretchr/testify/require"
)

// Expectation is a single scripted invocation a [FakeRunner] will match
// against, in registration order
type Expectation struct {
	Workdir string
	Env     map[string]string
	Args    []string

	Stdout   string
	ExitCode int
	Err      error
}

// FakeRunner is a scripted gitpoller.Runner: each call to Run must match
// the next registered [Expectation]'s args and workdir exactly, and carry
// every key of its Env with the same value (other env keys are ignored), mirroring
// the ordered expect-then-replay pattern used to fake out a shell in the
// original Python test suite this behavior was ported from
type FakeRunner struct {
	t *testing.T

	mu    sync.Mutex
	queue []Expectation
	calls int
}

func NewFakeRunner(t *testing.T) *FakeRunner {
	return &FakeRunner{t: t}
}

// Expect appends a scripted expectation to the queue
func (f *FakeRunner) Expect(e Expectation) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, e)
	return f
}

func (f *FakeRunner) Run(_ context.Context, workdir string, env map[string]string, args ...string) (gitpoller.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.t.Helper()
	require.Lessf(f.t, f.calls, len(f.queue), "unexpected git invocation %v (no more expectations queued)", args)

	want := f.queue[f.calls]
	f.calls++

	require.Equal(f.t, want.Args, args, "git argv mismatch")
	require.Equal(f.t, want.Workdir, workdir, "git workdir mismatch for %v", args)
	for k, v := range want.Env {
		require.Equal(f.t, v, env[k], "env %s mismatch for %v", k, args)
	}

	if want.Err != nil {
		return gitpoller.RunResult{}, want.Err
	}
	return gitpoller.RunResult{Stdout: want.Stdout, ExitCode: want.ExitCode}, nil
}

// Verify asserts every scripted expectation was consumed
func (f *FakeRunner) Verify() {
	f.t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(f.t, len(f.queue), f.calls, fmt.Sprintf("%d expectation(s) never invoked", len(f.queue)-f.calls))
}
