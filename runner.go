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

package gitpoller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// RunResult captures the outcome of a single git invocation. A non-zero
// ExitCode is not itself an error; the caller decides whether the exit
// status is fatal, a soft per-branch failure, or simply informational
type RunResult struct {
	// Stdout contains the combined stdout/stderr produced by the command,
	// trimmed of a single trailing newline
	Stdout string

	// ExitCode holds the process exit status. Zero unless the command ran
	// and exited non-zero
	ExitCode int
}

// Runner executes a single git invocation inside an optional working
// directory, with an optional environment overlay applied on top of the
// host process environment. Implementations must inherit the full host
// environment unless explicitly asked not to; tests inject a scripted
// fake that pattern-matches on (args, workdir, env)
type Runner interface {
	Run(ctx context.Context, workdir string, env map[string]string, args ...string) (RunResult, error)
}

// ExecRunner is the default [Runner], executing git through an embedded
// POSIX shell interpreter rather than os/exec directly, so that the
// same env-overlay and workdir plumbing used to materialize SSH
// credentials (core.sshCommand / GIT_SSH_COMMAND) can be expressed as
// ordinary shell state rather than bespoke exec.Cmd wiring
type ExecRunner struct{}

// NewExecRunner returns a [Runner] backed by a real git subprocess
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a git invocation built from args. Any non-zero exit status
// is reported via RunResult.ExitCode with a nil error; a non-nil error
// means the command could not be parsed or started at all
func (r *ExecRunner) Run(ctx context.Context, workdir string, env map[string]string, args ...string) (RunResult, error) {
	line := quoteArgs(args)

	p, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return RunResult{}, fmt.Errorf("parsing git invocation %q: %w", line, err)
	}

	var buf bytes.Buffer
	opts := []interp.RunnerOption{interp.StdIO(nil, &buf, &buf)}
	if workdir != "" {
		opts = append(opts, interp.Dir(workdir))
	}
	if len(env) > 0 {
		opts = append(opts, interp.Env(expand.ListEnviron(overlayEnviron(env)...)))
	}

	run, err := interp.New(opts...)
	if err != nil {
		return RunResult{}, fmt.Errorf("preparing git invocation %q: %w", line, err)
	}

	runErr := run.Run(ctx, p)
	out := strings.TrimSuffix(buf.String(), "\n")

	var status interp.ExitStatus
	if errors.As(runErr, &status) {
		return RunResult{Stdout: out, ExitCode: int(status)}, nil
	}
	if runErr != nil {
		return RunResult{Stdout: out}, runErr
	}

	return RunResult{Stdout: out, ExitCode: 0}, nil
}

// gitBinRunner rewrites the git binary name (args[0]) before delegating
// to an underlying [Runner], letting a poller configured with a
// non-default gitbin transparently affect every call site that builds
// its argv starting from the literal "git"
type gitBinRunner struct {
	Runner
	bin string
}

func withGitBin(r Runner, bin string) Runner {
	if bin == "" || bin == "git" {
		return r
	}
	return gitBinRunner{Runner: r, bin: bin}
}

func (g gitBinRunner) Run(ctx context.Context, workdir string, env map[string]string, args ...string) (RunResult, error) {
	if len(args) > 0 && args[0] == "git" {
		rewritten := make([]string, len(args))
		copy(rewritten, args)
		rewritten[0] = g.bin
		args = rewritten
	}
	return g.Runner.Run(ctx, workdir, env, args...)
}

// overlayEnviron layers env on top of the host process environment,
// ensuring every subprocess still observes arbitrary host variables
func overlayEnviron(env map[string]string) []string {
	pairs := os.Environ()
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}

// quoteArgs joins args into a single shell command line, single-quoting
// any argument that contains characters the embedded shell would
// otherwise treat specially
func quoteArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}

	safe := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("@%_+=:,./-", r):
		default:
			safe = false
		}
		if !safe {
			break
		}
	}
	if safe {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
