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
	"os"
	"strconv"
	"strings"

	"github.com/purpleclay/chomp"
)

func osEnv(key string) string {
	return os.Getenv(key)
}

// FeatureSet describes the SSH credential threading supported by the
// installed git client, derived from its reported version
type FeatureSet struct {
	// SSHViaConfig is true for git >= 2.10, which supports passing the
	// SSH command through -c core.sshCommand=...
	SSHViaConfig bool

	// SSHViaEnv is true for git >= 2.3, which supports passing the SSH
	// command via the GIT_SSH_COMMAND environment variable. For
	// 2.3 <= git < 2.10 it is the only supported route
	SSHViaEnv bool
}

type gitVersion struct {
	major, minor, patch int
}

func (v gitVersion) atLeast(major, minor int) bool {
	if v.major != major {
		return v.major > major
	}
	return v.minor >= minor
}

// probeFeatures runs `git --version`, parses it, and derives the
// [FeatureSet] available on this host
func probeFeatures(ctx context.Context, runner Runner) (FeatureSet, error) {
	res, err := runner.Run(ctx, "", nil, "git", "--version")
	if err != nil {
		return FeatureSet{}, ErrGitMissing{PathEnv: osEnv("PATH")}
	}
	if res.ExitCode != 0 {
		return FeatureSet{}, ErrGitMissing{PathEnv: osEnv("PATH")}
	}

	v, err := parseGitVersion(res.Stdout)
	if err != nil {
		return FeatureSet{}, err
	}

	return FeatureSet{
		SSHViaConfig: v.atLeast(2, 10),
		SSHViaEnv:    v.atLeast(2, 3),
	}, nil
}

// checkSSHSupported rejects an SSH credential configuration outright when
// the installed git predates 2.3, the oldest version able to carry an SSH
// command at all
func (f FeatureSet) checkSSHSupported(rawVersion string) error {
	if !f.SSHViaConfig && !f.SSHViaEnv {
		return ErrSSHUnsupported{GitVersion: rawVersion}
	}
	return nil
}

func parseGitVersion(out string) (gitVersion, error) {
	rem, _, err := chomp.Tag("git version ")(out)
	if err != nil {
		return gitVersion{}, ErrGitVersionUnparsable{Out: out}
	}

	rem, numeric, _ := chomp.Until(" ")(rem)
	if numeric == "" {
		numeric = rem
	}

	parts := strings.SplitN(numeric, ".", 3)
	if len(parts) < 2 {
		return gitVersion{}, ErrGitVersionUnparsable{Out: out}
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return gitVersion{}, ErrGitVersionUnparsable{Out: out}
	}

	minor, err := strconv.Atoi(trimNonDigitSuffix(parts[1]))
	if err != nil {
		return gitVersion{}, ErrGitVersionUnparsable{Out: out}
	}

	patch := 0
	if len(parts) == 3 {
		patch, _ = strconv.Atoi(trimNonDigitSuffix(parts[2]))
	}

	return gitVersion{major: major, minor: minor, patch: patch}, nil
}

// trimNonDigitSuffix strips trailing non-numeric noise from a version
// component, e.g. "10.windows.1" -> "10" once split on ".", or "1-rc1" -> "1"
func trimNonDigitSuffix(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}
