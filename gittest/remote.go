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

package gittest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Remote is a real, on-disk bare git repository usable as a poll target in
// integration-style tests
type Remote struct {
	t   *testing.T
	Dir string
}

// NewRemote creates a bare repository plus a scratch working clone used to
// seed commits, tags and branches into it
func NewRemote(t *testing.T) *Remote {
	t.Helper()

	base := t.TempDir()
	bare := filepath.Join(base, "remote.git")
	work := filepath.Join(base, "work")

	run(t, "", "git init --bare "+shQuote(bare))
	run(t, "", "git clone "+shQuote(bare)+" "+shQuote(work))
	run(t, work, "git commit --allow-empty -m initial")
	run(t, work, "git push origin HEAD:refs/heads/master")

	return &Remote{t: t, Dir: bare}
}

// Commit creates an empty commit with message on branch (created from the
// current HEAD if it does not exist yet) in the scratch clone and pushes
// it to the bare remote, returning the new commit sha
func (r *Remote) Commit(branch, message string) string {
	r.t.Helper()
	work := r.checkoutClone(branch)

	run(r.t, work, "git commit --allow-empty -m "+shQuote(message))
	run(r.t, work, "git push origin HEAD:refs/heads/"+branch)

	return strings.TrimSpace(run(r.t, work, "git rev-parse HEAD"))
}

// Tag creates a lightweight tag at the current tip of branch and pushes it
func (r *Remote) Tag(branch, tag string) {
	r.t.Helper()
	work := r.checkoutClone(branch)
	run(r.t, work, "git tag "+shQuote(tag))
	run(r.t, work, "git push origin "+shQuote(tag))
}

func (r *Remote) checkoutClone(branch string) string {
	r.t.Helper()
	work := r.t.TempDir()
	run(r.t, "", "git clone "+shQuote(r.Dir)+" "+shQuote(work))

	if run(r.t, work, "git rev-parse --verify "+shQuote("refs/remotes/origin/"+branch)) != "" {
		run(r.t, work, "git checkout -B "+shQuote(branch)+" origin/"+branch)
	} else {
		run(r.t, work, "git checkout -B "+shQuote(branch))
	}

	return work
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func run(t *testing.T, workdir, cmd string) string {
	t.Helper()

	p, err := syntax.NewParser().Parse(strings.NewReader(cmd), "")
	require.NoError(t, err)

	var buf bytes.Buffer
	opts := []interp.RunnerOption{interp.StdIO(os.Stdin, &buf, &buf)}
	if workdir != "" {
		opts = append(opts, interp.Dir(workdir))
	}

	i, err := interp.New(opts...)
	require.NoError(t, err)
	_ = i.Run(context.Background(), p)

	return strings.TrimSpace(buf.String())
}
