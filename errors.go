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

import "fmt"

// ErrGitMissing is raised when no git client was identified within the
// PATH environment variable on the current OS
type ErrGitMissing struct {
	// PathEnv contains the value of the PATH environment variable
	PathEnv string
}

func (e ErrGitMissing) Error() string {
	return fmt.Sprintf("git is not installed under the PATH environment variable. PATH resolves to %s", e.PathEnv)
}

// ErrGitVersionUnparsable is raised when the output of git --version does
// not match the expected "git version X.Y.Z..." shape
type ErrGitVersionUnparsable struct {
	Out string
}

func (e ErrGitVersionUnparsable) Error() string {
	return fmt.Sprintf("could not parse git version from: %q", e.Out)
}

// ErrSSHUnsupported is raised when SSH credentials were configured but the
// installed git client is too old to thread them through either
// core.sshCommand or the GIT_SSH_COMMAND environment variable
type ErrSSHUnsupported struct {
	GitVersion string
}

func (e ErrSSHUnsupported) Error() string {
	return fmt.Sprintf("git version %s does not support SSH key authentication, upgrade to at least 2.3.0", e.GitVersion)
}

// ErrGitCommand is raised when a git subprocess invocation exits with a
// non-zero status. From ls-remote, fetch, or the one-time repository init
// it is fatal to the poll. From the log invocations it is a per-branch
// soft failure that the poller logs and handles in place. rev-parse never
// raises it; a failed rev-parse is reported only as a false result
type ErrGitCommand struct {
	// Args contains the git invocation that failed
	Args []string

	// ExitCode holds the process exit status
	ExitCode int

	// Out contains any raw combined output produced before the failure
	Out string
}

func (e ErrGitCommand) Error() string {
	return fmt.Sprintf("git %v failed with exit code %d: %s", e.Args, e.ExitCode, e.Out)
}

// ErrGitFatal is a specialisation of [ErrGitCommand] for git's own "fatal"
// exit status (128), kept distinct so callers that care can errors.As for
// it instead of comparing exit codes directly
type ErrGitFatal struct {
	ErrGitCommand
}

// ErrEmptyMetadata is raised when a required commit metadata field
// (author, committer, or timestamp) comes back empty from git log
type ErrEmptyMetadata struct {
	Field string
	Sha   string
}

func (e ErrEmptyMetadata) Error() string {
	return fmt.Sprintf("commit %s has no %s metadata", e.Sha, e.Field)
}

// ErrConfig is raised at construction time for invalid or mutually
// exclusive configuration option combinations. It is never raised from
// the poll loop
type ErrConfig struct {
	Reason string
}

func (e ErrConfig) Error() string {
	return e.Reason
}
