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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// localRefNamespace roots every mirrored ref this poller writes, keyed by
// the url-quoted repository URL so that multiple pollers can share a
// workdir without colliding refs
const localRefNamespace = "refs/gitpoller"

// urlQuote percent-encodes repoURL so it is safe to embed as a single path
// segment inside a local ref name. Only the characters that would
// otherwise be interpreted as path or ref separators are escaped, so a
// scp-style URL like git@example.com:~foo/baz.git becomes
// git%40example.com%3A%7Efoo%2Fbaz.git
func urlQuote(repoURL string) string {
	var b strings.Builder
	for _, r := range repoURL {
		switch r {
		case ':', '/', '@', '~':
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// localRef returns the namespaced local ref a remote ref is fetched into
// for this repository
func localRef(repoURL, remoteRef string) string {
	return fmt.Sprintf("%s/%s/%s", localRefNamespace, urlQuote(repoURL), remoteRef)
}

// ensureMirror makes sure workdir contains a bare git repository, running
// `git init --bare` if it does not yet exist. A non-zero exit or runner
// error is a hard failure
func ensureMirror(ctx context.Context, runner Runner, workdir string) error {
	if _, err := os.Stat(filepath.Join(workdir, "HEAD")); err == nil {
		return nil
	}

	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return fmt.Errorf("creating workdir: %w", err)
	}

	args := []string{"git", "init", "--bare", workdir}
	res, err := runner.Run(ctx, "", nil, args...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return gitCommandErr(args, res)
	}
	return nil
}

// fetchRefs fetches every polled ref into its namespaced local ref in a
// single invocation. Non-zero exit is a hard failure; the cursor must not
// be touched by the caller in that case
func fetchRefs(ctx context.Context, runner Runner, workdir, repoURL string, refs []polledRef, dec *materializedCredentials) error {
	if len(refs) == 0 {
		return nil
	}

	args := []string{"git", "fetch", "--progress", repoURL}
	for _, r := range refs {
		args = append(args, fmt.Sprintf("+%s:%s", r.Ref, localRef(repoURL, r.Ref)))
	}
	args = dec.decorate(args)

	res, err := runner.Run(ctx, workdir, dec.env(nil), args...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return gitCommandErr(args, res)
	}
	return nil
}

// resolveTip runs rev-parse against a ref's namespaced local mirror ref.
// A non-zero exit is a soft per-branch failure: the caller logs it and
// leaves that branch's cursor entry untouched
func resolveTip(ctx context.Context, runner Runner, workdir, repoURL string, ref string) (string, bool) {
	args := []string{"git", "rev-parse", localRef(repoURL, ref)}
	res, err := runner.Run(ctx, workdir, nil, args...)
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

// gitCommandErr wraps a failed invocation as [ErrGitFatal] when git
// reported its own "fatal" exit status (128), else as a plain
// [ErrGitCommand]
func gitCommandErr(args []string, res RunResult) error {
	base := ErrGitCommand{Args: args, ExitCode: res.ExitCode, Out: res.Stdout}
	if res.ExitCode == 128 {
		return ErrGitFatal{ErrGitCommand: base}
	}
	return base
}
