package gitpoller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// sequencedRunner replays a fixed sequence of results, one per call, so a
// test can script a rev-parse followed by a git log without a general
// argv-matching fixture
type sequencedRunner struct {
	results []RunResult
	errs    []error
	i       int
}

func (s *sequencedRunner) Run(context.Context, string, map[string]string, ...string) (RunResult, error) {
	idx := s.i
	s.i++
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	return s.results[idx], err
}

func TestExcludeList_DedupesSortsAndExcludesNewTip(t *testing.T) {
	snapshot := map[string]string{
		"master":  "fa3a930000000000000000000000000000000000",
		"release": "bf0b5d5000000000000000000000000000000000",
		"feature": "bf0b5d5000000000000000000000000000000000",
		"hotfix":  "1f2e3d4000000000000000000000000000000000",
	}

	got := excludeList(snapshot, "master", "fa3a930000000000000000000000000000000000")
	require.Equal(t, []string{
		"1f2e3d4000000000000000000000000000000000",
		"bf0b5d5000000000000000000000000000000000",
	}, got)
}

func TestComputeCommitSets_InitialBranchEmitsNothing(t *testing.T) {
	runner := &sequencedRunner{results: []RunResult{{Stdout: "bf0b5d5\n"}}}
	refs := []polledRef{{Ref: "refs/heads/master", Key: "master"}}

	outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs, map[string]string{}, false, nil)

	require.Len(t, outcomes, 1)
	require.Empty(t, outcomes[0].Shas)
	require.Equal(t, "bf0b5d5", outcomes[0].NewCursor)
	require.True(t, outcomes[0].Advance)
}

func TestComputeCommitSets_NoChangeIsNoop(t *testing.T) {
	runner := &sequencedRunner{results: []RunResult{{Stdout: "bf0b5d5\n"}}}
	refs := []polledRef{{Ref: "refs/heads/master", Key: "master"}}

	outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs,
		map[string]string{"master": "bf0b5d5"}, false, nil)

	require.Len(t, outcomes, 1)
	require.Empty(t, outcomes[0].Shas)
	require.Equal(t, "bf0b5d5", outcomes[0].NewCursor)
}

func TestComputeCommitSets_NewCommits(t *testing.T) {
	runner := &sequencedRunner{results: []RunResult{
		{Stdout: "4423241\n"},             // rev-parse
		{Stdout: "64a5a1a\n4423241\n"}, // git log
	}}
	refs := []polledRef{{Ref: "refs/heads/master", Key: "master"}}

	outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs,
		map[string]string{"master": "fa3a930"}, false, nil)

	require.Len(t, outcomes, 1)
	require.Equal(t, []string{"64a5a1a", "4423241"}, outcomes[0].Shas)
	require.Equal(t, "4423241", outcomes[0].NewCursor)
}

func TestComputeCommitSets_FastForwardNoCommits(t *testing.T) {
	t.Run("default silently advances", func(t *testing.T) {
		runner := &sequencedRunner{results: []RunResult{{Stdout: "4423241\n"}, {Stdout: ""}}}
		refs := []polledRef{{Ref: "refs/heads/release", Key: "release"}}

		outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs,
			map[string]string{"master": "4423241"}, false, nil)

		require.Len(t, outcomes, 1)
		require.Empty(t, outcomes[0].Shas)
		require.Equal(t, "4423241", outcomes[0].NewCursor)
	})

	t.Run("buildPushesWithNoCommits synthesizes one change", func(t *testing.T) {
		runner := &sequencedRunner{results: []RunResult{{Stdout: "4423241\n"}, {Stdout: ""}}}
		refs := []polledRef{{Ref: "refs/heads/release", Key: "release"}}

		outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs,
			map[string]string{"master": "4423241"}, true, nil)

		require.Len(t, outcomes, 1)
		require.Equal(t, []string{"4423241"}, outcomes[0].Shas)
	})
}

func TestComputeCommitSets_LogFailureStillAdvancesCursor(t *testing.T) {
	runner := &sequencedRunner{
		results: []RunResult{{Stdout: "4423241\n"}, {}},
		errs:    []error{nil, errBoom},
	}
	refs := []polledRef{{Ref: "refs/heads/master", Key: "master"}}

	var logged []string
	outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs,
		map[string]string{"master": "fa3a930"}, false, func(format string, args ...any) {
			logged = append(logged, format)
		})

	require.Len(t, outcomes, 1)
	require.Empty(t, outcomes[0].Shas)
	require.Equal(t, "4423241", outcomes[0].NewCursor)
	require.True(t, outcomes[0].Advance)
	require.NotEmpty(t, logged)
}

func TestComputeCommitSets_RevParseFailureSkipsBranch(t *testing.T) {
	runner := &sequencedRunner{results: []RunResult{{}}, errs: []error{errBoom}}
	refs := []polledRef{{Ref: "refs/heads/master", Key: "master"}}

	outcomes := computeCommitSets(context.Background(), runner, "/work", "repo", refs,
		map[string]string{"master": "fa3a930"}, false, nil)

	require.Empty(t, outcomes)
}
