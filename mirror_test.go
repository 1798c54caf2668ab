package gitpoller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUrlQuote(t *testing.T) {
	require.Equal(t, "git%40example.com%3A%7Efoo%2Fbaz.git", urlQuote("git@example.com:~foo/baz.git"))
}

func TestLocalRef(t *testing.T) {
	ref := localRef("git@example.com:foo.git", "refs/heads/master")
	require.Contains(t, ref, localRefNamespace+"/")
	require.Contains(t, ref, "refs/heads/master")
}

func TestResolveTip_SoftFailure(t *testing.T) {
	runner := &scriptedRunner{exitCode: 1}

	_, ok := resolveTip(context.Background(), runner, "/work", "repo", "refs/heads/master")
	require.False(t, ok)
}

func TestResolveTip_Success(t *testing.T) {
	runner := &scriptedRunner{stdout: "bf0b5d5e88e33c7a30d6a8f3f3e4a3a0b8e9d5d5\n"}

	sha, ok := resolveTip(context.Background(), runner, "/work", "repo", "refs/heads/master")
	require.True(t, ok)
	require.Equal(t, "bf0b5d5e88e33c7a30d6a8f3f3e4a3a0b8e9d5d5", sha)
}

func TestFetchRefs_NoRefsIsNoop(t *testing.T) {
	require.NoError(t, fetchRefs(context.Background(), &scriptedRunner{}, "/work", "repo", nil, nil))
}

func TestFetchRefs_HardFailure(t *testing.T) {
	runner := &scriptedRunner{exitCode: 128}
	refs := []polledRef{{Ref: "refs/heads/master", Key: "master"}}

	err := fetchRefs(context.Background(), runner, "/work", "repo", refs, nil)
	require.Error(t, err)
	require.ErrorAs(t, err, &ErrGitFatal{})
}

func TestGitCommandErr_FatalVsPlain(t *testing.T) {
	fatal := gitCommandErr([]string{"git", "fetch"}, RunResult{ExitCode: 128})
	require.ErrorAs(t, fatal, &ErrGitFatal{})

	plain := gitCommandErr([]string{"git", "rev-parse"}, RunResult{ExitCode: 1})
	require.ErrorAs(t, plain, &ErrGitCommand{})

	_, isFatal := plain.(ErrGitFatal)
	require.False(t, isFatal)
}
