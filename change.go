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

import "context"

// ChangeRecord is the normalized, immutable description of a single new
// commit submitted to the downstream ingest
type ChangeRecord struct {
	Author        string
	Committer     string
	Branch        string
	Category      string
	Codebase      string
	Comments      string
	Files         []string
	Project       string
	Properties    map[string]string
	Repository    string
	Revision      string
	Revlink       string
	Src           string
	WhenTimestamp int64
}

// CategoryFunc computes a change's category from its otherwise fully
// populated record, replacing any static category configured
type CategoryFunc func(rec ChangeRecord) string

// Ingest is the downstream change consumer. Idempotency is not required
// of implementations; the cursor is what prevents re-submission
type Ingest interface {
	ChangesAdded(ctx context.Context, rec ChangeRecord) error
}

// buildChangeRecord assembles a ChangeRecord from extracted commit
// metadata and the poller's static configuration, applying a callable
// category function last if one was configured
func buildChangeRecord(
	meta CommitMetadata,
	sha, branch, repository, project, codebase, revlink string,
	category string,
	categoryFn CategoryFunc,
) ChangeRecord {
	rec := ChangeRecord{
		Author:        meta.Author,
		Committer:     meta.Committer,
		Branch:        branch,
		Category:      category,
		Codebase:      codebase,
		Comments:      meta.Comments,
		Files:         meta.Files,
		Project:       project,
		Repository:    repository,
		Revision:      sha,
		Revlink:       revlink,
		Src:           "git",
		WhenTimestamp: meta.When,
	}

	if categoryFn != nil {
		rec.Category = categoryFn(rec)
	}

	return rec
}
