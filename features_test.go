package gitpoller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGitVersion(t *testing.T) {
	cases := []struct {
		out  string
		want gitVersion
	}{
		{"git version 2.39.2", gitVersion{2, 39, 2}},
		{"git version 2.10.0.windows.1", gitVersion{2, 10, 0}},
		{"git version 1.7.0", gitVersion{1, 7, 0}},
		{"git version 2.3", gitVersion{2, 3, 0}},
	}

	for _, tc := range cases {
		got, err := parseGitVersion(tc.out)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestParseGitVersion_Unparsable(t *testing.T) {
	_, err := parseGitVersion("not a git version string")
	require.Error(t, err)
	require.ErrorAs(t, err, &ErrGitVersionUnparsable{})
}

func TestFeatureSet_SSHSupportByVersion(t *testing.T) {
	cases := []struct {
		name            string
		version         gitVersion
		wantSSHConfig   bool
		wantSSHEnv      bool
		wantUnsupported bool
	}{
		{"too old", gitVersion{1, 7, 0}, false, false, true},
		{"env only", gitVersion{2, 3, 0}, false, true, false},
		{"config capable", gitVersion{2, 10, 0}, true, true, false},
	}

	for _, tc := range cases {
		fs := FeatureSet{SSHViaConfig: tc.version.atLeast(2, 10), SSHViaEnv: tc.version.atLeast(2, 3)}
		require.Equal(t, tc.wantSSHConfig, fs.SSHViaConfig, tc.name)
		require.Equal(t, tc.wantSSHEnv, fs.SSHViaEnv, tc.name)

		err := fs.checkSSHSupported("x.y.z")
		if tc.wantUnsupported {
			require.Error(t, err, tc.name)
		} else {
			require.NoError(t, err, tc.name)
		}
	}
}

func TestProbeFeatures_GitMissing(t *testing.T) {
	runner := &scriptedRunner{err: errBoom}

	_, err := probeFeatures(context.Background(), runner)
	require.Error(t, err)
	require.ErrorAs(t, err, &ErrGitMissing{})
}

type scriptedRunner struct {
	stdout   string
	exitCode int
	err      error
}

func (s *scriptedRunner) Run(context.Context, string, map[string]string, ...string) (RunResult, error) {
	if s.err != nil {
		return RunResult{}, s.err
	}
	return RunResult{Stdout: s.stdout, ExitCode: s.exitCode}, nil
}

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }
