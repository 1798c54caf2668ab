package gitpoller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnquoteGitPath(t *testing.T) {
	require.Equal(t, "file_octal", unquoteGitPath(`"\146ile_octal"`))
	require.Equal(t, "file space", unquoteGitPath("file space"))
	require.Equal(t, "plain", unquoteGitPath("plain"))
}

func TestFilesChanged_DecodesOctalAndDropsEmptyLines(t *testing.T) {
	runner := &scriptedRunner{stdout: "\n\nfile1\nfile2\n\"\\146ile_octal\"\nfile space"}

	files, err := filesChanged(context.Background(), runner, "/work", "abc123")
	require.NoError(t, err)
	require.Equal(t, []string{"file1", "file2", "file_octal", "file space"}, files)
}

func TestExtractMetadata_EmptyAuthorFails(t *testing.T) {
	runner := &multiStageRunner{stdouts: []string{""}}

	_, err := extractMetadata(context.Background(), runner, "/work", "abc123")
	require.Error(t, err)
	require.ErrorAs(t, err, &ErrEmptyMetadata{})
}

func TestExtractMetadata_Success(t *testing.T) {
	runner := &multiStageRunner{stdouts: []string{
		"Jane Doe <jane@example.com>",
		"Jane Doe <jane@example.com>",
		"1700000000",
		"subject line\nbody text",
		"file1\nfile2",
	}}

	meta, err := extractMetadata(context.Background(), runner, "/work", "abc123")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe <jane@example.com>", meta.Author)
	require.Equal(t, int64(1700000000), meta.When)
	require.Equal(t, []string{"file1", "file2"}, meta.Files)
}

type multiStageRunner struct {
	stdouts []string
	i       int
}

func (m *multiStageRunner) Run(context.Context, string, map[string]string, ...string) (RunResult, error) {
	out := m.stdouts[m.i]
	m.i++
	return RunResult{Stdout: out}, nil
}
