package gitpoller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLsRemote(t *testing.T) {
	out := "4423cdbcbb89c14e50dd5f4152415afd686c5241\trefs/heads/master\n" +
		"bf0b5d5e88e33c7a30d6a8f3f3e4a3a0b8e9d5d5\trefs/heads/release\n" +
		"9118a3cf24a6e323a2a6c6d1d34e2f2f2f2f2f2f\trefs/tags/v1\n"

	refs := parseLsRemote(out)
	require.Len(t, refs.order, 3)
	require.Equal(t, "refs/heads/master", refs.order[0].Ref)

	sha, ok := refs.shaFor("refs/heads/release")
	require.True(t, ok)
	require.Equal(t, "bf0b5d5e88e33c7a30d6a8f3f3e4a3a0b8e9d5d5", sha)

	_, ok = refs.shaFor("refs/heads/missing")
	require.False(t, ok)
}

func TestParseLsRemote_Empty(t *testing.T) {
	refs := parseLsRemote("")
	require.Empty(t, refs.order)
}

func TestEnumerateRemote_HardFailureOnNonZeroExit(t *testing.T) {
	runner := &scriptedRunner{exitCode: 128, stdout: "fatal: repository not found"}

	_, err := enumerateRemote(context.Background(), runner, "git@example.com:foo.git", nil)
	require.Error(t, err)
	require.ErrorAs(t, err, &ErrGitFatal{})
}
