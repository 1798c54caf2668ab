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
)

// branchOutcome is the result of computing one branch's new commit set for
// a single poll cycle
type branchOutcome struct {
	Key string
	Ref string

	// Shas holds the new commits to emit, oldest-excludes-aside, in the
	// order git log reported them (reverse-chronological)
	Shas []string

	// NewCursor is the value this branch's cursor entry should become: the
	// tip resolved for it this poll
	NewCursor string

	// Advance is true when NewCursor should actually be written. A
	// rev-parse failure computes no outcome at all for the branch, so every
	// outcome computeCommitSets returns has Advance set
	Advance bool
}

// computeCommitSets resolves tips for every polled ref and, for each,
// determines the new commits to emit plus the cursor value to persist.
// The exclude list for a branch is built from a snapshot of the cursor
// taken before any updates in this poll, per the cross-branch overlap rule
func computeCommitSets(
	ctx context.Context,
	runner Runner,
	workdir, repoURL string,
	refs []polledRef,
	cursorSnapshot map[string]string,
	buildPushesWithNoCommits bool,
	onLog func(format string, args ...any),
) []branchOutcome {
	outcomes := make([]branchOutcome, 0, len(refs))

	for _, r := range refs {
		tip, ok := resolveTip(ctx, runner, workdir, repoURL, r.Ref)
		if !ok {
			if onLog != nil {
				onLog("rev-parse failed for %s, leaving cursor untouched", r.Ref)
			}
			continue
		}

		old, known := cursorSnapshot[r.Key]
		if len(cursorSnapshot) == 0 {
			// initial run with an empty cursor: record the tip, emit nothing.
			// A branch that is new to a non-empty cursor falls through to git
			// log below, excluding every known tip
			outcomes = append(outcomes, branchOutcome{Key: r.Key, Ref: r.Ref, NewCursor: tip, Advance: true})
			continue
		}

		if known && old == tip {
			outcomes = append(outcomes, branchOutcome{Key: r.Key, Ref: r.Ref, NewCursor: tip, Advance: true})
			continue
		}

		excludes := excludeList(cursorSnapshot, r.Key, tip)
		shas, err := gitLogNewCommits(ctx, runner, workdir, tip, excludes)
		if err != nil {
			// soft failure: cursor still advances to the new tip so the
			// poller does not keep retrying the same broken range forever
			if onLog != nil {
				onLog("git log failed computing new commits for %s: %v", r.Ref, err)
			}
			outcomes = append(outcomes, branchOutcome{Key: r.Key, Ref: r.Ref, NewCursor: tip, Advance: true})
			continue
		}

		if len(shas) == 0 {
			if buildPushesWithNoCommits {
				outcomes = append(outcomes, branchOutcome{Key: r.Key, Ref: r.Ref, Shas: []string{tip}, NewCursor: tip, Advance: true})
			} else {
				outcomes = append(outcomes, branchOutcome{Key: r.Key, Ref: r.Ref, NewCursor: tip, Advance: true})
			}
			continue
		}

		outcomes = append(outcomes, branchOutcome{Key: r.Key, Ref: r.Ref, Shas: shas, NewCursor: tip, Advance: true})
	}

	return outcomes
}

// excludeList builds the deduplicated, lexicographically sorted set of
// revisions to exclude when computing selfKey's commit set: the branch's
// own previous tip plus every other cursor entry's previous tip, minus
// newTip itself
func excludeList(cursorSnapshot map[string]string, selfKey, newTip string) []string {
	seen := map[string]struct{}{}
	for _, sha := range cursorSnapshot {
		if sha == "" || sha == newTip {
			continue
		}
		seen[sha] = struct{}{}
	}

	shas := make([]string, 0, len(seen))
	for sha := range seen {
		shas = append(shas, sha)
	}
	return dedupeSorted(shas...)
}

// gitLogNewCommits runs `git log --ignore-missing --format=%H <new>
// <excludes...> --` and returns the listed shas in git's own order
func gitLogNewCommits(ctx context.Context, runner Runner, workdir, newTip string, excludes []string) ([]string, error) {
	args := []string{"git", "log", "--ignore-missing", "--format=%H", newTip}
	for _, ex := range excludes {
		args = append(args, "^"+ex)
	}
	args = append(args, "--")

	res, err := runner.Run(ctx, workdir, nil, args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, gitCommandErr(args, res)
	}

	if strings.TrimSpace(res.Stdout) == "" {
		return nil, nil
	}

	return strings.Split(strings.TrimSpace(res.Stdout), "\n"), nil
}
