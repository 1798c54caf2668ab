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
	"strconv"
	"strings"
	"unicode/utf8"
)

// CommitMetadata holds everything extracted from git log about a single
// commit, prior to being folded into a ChangeRecord
type CommitMetadata struct {
	Author    string
	Committer string
	When      int64
	Comments  string
	Files     []string
}

// extractMetadata runs the four git log invocations needed to describe
// sha, plus a fifth for its changed files
func extractMetadata(ctx context.Context, runner Runner, workdir, sha string) (CommitMetadata, error) {
	author, err := logNoWalk(ctx, runner, workdir, sha, "%aN <%aE>")
	if err != nil {
		return CommitMetadata{}, err
	}
	author = toUTF8(author)
	if author == "" {
		return CommitMetadata{}, ErrEmptyMetadata{Field: "author", Sha: sha}
	}

	committer, err := logNoWalk(ctx, runner, workdir, sha, "%cN <%cE>")
	if err != nil {
		return CommitMetadata{}, err
	}
	committer = toUTF8(committer)
	if committer == "" {
		return CommitMetadata{}, ErrEmptyMetadata{Field: "committer", Sha: sha}
	}

	whenRaw, err := logNoWalk(ctx, runner, workdir, sha, "%ct")
	if err != nil {
		return CommitMetadata{}, err
	}
	if strings.TrimSpace(whenRaw) == "" {
		return CommitMetadata{}, ErrEmptyMetadata{Field: "timestamp", Sha: sha}
	}
	whenFloat, perr := strconv.ParseFloat(strings.TrimSpace(whenRaw), 64)
	if perr != nil {
		return CommitMetadata{}, ErrEmptyMetadata{Field: "timestamp", Sha: sha}
	}

	comments, err := logNoWalk(ctx, runner, workdir, sha, "%s%n%b")
	if err != nil {
		return CommitMetadata{}, err
	}
	comments = cleanLineEndings(comments)

	files, err := filesChanged(ctx, runner, workdir, sha)
	if err != nil {
		return CommitMetadata{}, err
	}

	return CommitMetadata{
		Author:    author,
		Committer: committer,
		When:      int64(whenFloat),
		Comments:  toUTF8(comments),
		Files:     files,
	}, nil
}

func logNoWalk(ctx context.Context, runner Runner, workdir, sha, format string) (string, error) {
	args := []string{"git", "log", "--no-walk", "--format=" + format, sha, "--"}
	res, err := runner.Run(ctx, workdir, nil, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", gitCommandErr(args, res)
	}
	return res.Stdout, nil
}

// filesChanged runs git log --name-only --no-walk and decodes the
// resulting file list, unescaping any C-quoted octal filenames git emits
// for paths containing non-ASCII or special bytes
func filesChanged(ctx context.Context, runner Runner, workdir, sha string) ([]string, error) {
	args := []string{"git", "log", "--name-only", "--no-walk", "--format=%n", sha, "--"}
	res, err := runner.Run(ctx, workdir, nil, args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, gitCommandErr(args, res)
	}

	var files []string
	for _, line := range trim(strings.Split(res.Stdout, "\n")...) {
		files = append(files, toUTF8(unquoteGitPath(line)))
	}
	return files, nil
}

// unquoteGitPath decodes a filename git has wrapped in double quotes and
// backslash-octal escaped, e.g. `"\146ile_octal"` -> `file_octal`. Lines
// without surrounding quotes are returned unchanged
func unquoteGitPath(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	inner := s[1 : len(s)-1]

	var out []byte
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i+1 >= len(inner) {
			out = append(out, c)
			continue
		}

		next := inner[i+1]
		switch next {
		case 'n':
			out = append(out, '\n')
			i++
		case 't':
			out = append(out, '\t')
			i++
		case '\\', '"':
			out = append(out, next)
			i++
		default:
			if next >= '0' && next <= '7' {
				end := i + 1
				for end < len(inner) && end < i+4 && inner[end] >= '0' && inner[end] <= '7' {
					end++
				}
				octal := inner[i+1 : end]
				if v, err := strconv.ParseUint(octal, 8, 8); err == nil {
					out = append(out, byte(v))
					i = end - 1
					continue
				}
			}
			out = append(out, c)
		}
	}

	return string(out)
}

// toUTF8 replaces any invalid UTF-8 byte sequences with the Unicode
// replacement character, matching git's own lenient decoding of commit
// metadata that may not have been authored in UTF-8
func toUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
			i++
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}
