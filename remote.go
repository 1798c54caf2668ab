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
	"strings"

	"github.com/purpleclay/chomp"
)

// remoteRef is a single row from `git ls-remote --refs`
type remoteRef struct {
	Ref string
	Sha string
}

// remoteRefs is the ordered set of refs advertised by a remote, preserving
// the order git reported them in and offering O(1) lookup by ref name
type remoteRefs struct {
	order []remoteRef
	bySha map[string]string
}

func (r remoteRefs) shaFor(ref string) (string, bool) {
	sha, ok := r.bySha[ref]
	return sha, ok
}

// enumerateRemote runs `git ls-remote --refs <repourl>` and parses the
// resulting <sha>\t<ref> table. Empty output is valid and yields zero refs
func enumerateRemote(ctx context.Context, runner Runner, repoURL string, dec *materializedCredentials) (remoteRefs, error) {
	args := dec.decorate([]string{"git", "ls-remote", "--refs", repoURL})
	res, err := runner.Run(ctx, "", dec.env(nil), args...)
	if err != nil {
		return remoteRefs{}, err
	}
	if res.ExitCode != 0 {
		return remoteRefs{}, gitCommandErr(args, res)
	}

	return parseLsRemote(res.Stdout), nil
}

func parseLsRemote(out string) remoteRefs {
	refs := remoteRefs{bySha: map[string]string{}}

	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		rem, sha, err := chomp.Until("\t")(line)
		if err != nil || sha == "" {
			continue
		}
		rem, _, err = chomp.Tag("\t")(rem)
		if err != nil {
			continue
		}
		ref := strings.TrimSpace(rem)
		if ref == "" {
			continue
		}

		refs.order = append(refs.order, remoteRef{Ref: ref, Sha: sha})
		refs.bySha[ref] = sha
	}

	return refs
}
