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
	"fmt"
	"os"
	"path/filepath"
)

// credentialScratchDir is the name of the private temporary directory
// created under the workdir to hold SSH credential material for the
// lifetime of a single poll. It is recreated fresh on every poll and
// never left behind once the poll returns
const credentialScratchDir = ".gitpoller-ssh@@@"

// sshCredentials holds the optional SSH material a poller was configured
// with. Either HostKey or KnownHosts may be set, never both
type sshCredentials struct {
	PrivateKey string
	HostKey    string
	KnownHosts string
}

func (c sshCredentials) enabled() bool {
	return c.PrivateKey != ""
}

// materializedCredentials is the result of writing SSH credential material
// to a scoped scratch directory for a single poll. Close must be called
// once the poll completes, success or failure, to guarantee the private
// key never outlives it
type materializedCredentials struct {
	dir       string
	sshCmd    string
	configDec []string          // git -c decoration, when SSHViaConfig
	envDec    map[string]string // env decoration, when SSHViaEnv
}

// Close removes the scratch directory and everything beneath it,
// including the private key
func (m *materializedCredentials) Close() error {
	if m == nil || m.dir == "" {
		return nil
	}
	return os.RemoveAll(m.dir)
}

// materializeCredentials writes the configured SSH credential material to
// a fresh private temp directory under workdir and returns the
// decoration needed to thread it through every git invocation of the
// current poll that touches the remote. Callers must defer Close on the
// result
func materializeCredentials(workdir string, creds sshCredentials, features FeatureSet, rawVersion string) (*materializedCredentials, error) {
	if !creds.enabled() {
		return &materializedCredentials{}, nil
	}

	if err := features.checkSSHSupported(rawVersion); err != nil {
		return nil, err
	}

	dir := filepath.Join(workdir, credentialScratchDir)
	_ = os.RemoveAll(dir) // guard against a crash having left a stale scratch dir behind
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating credential scratch dir: %w", err)
	}

	keyPath := filepath.Join(dir, "ssh-key")
	key := creds.PrivateKey
	if key == "" || key[len(key)-1] != '\n' {
		key += "\n"
	}
	if err := os.WriteFile(keyPath, []byte(key), 0o400); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("writing ssh private key: %w", err)
	}

	var knownHostsPath string
	if creds.HostKey != "" || creds.KnownHosts != "" {
		knownHostsPath = filepath.Join(dir, "ssh-known-hosts")
		contents := creds.KnownHosts
		if contents == "" {
			contents = "* " + creds.HostKey
		}
		if err := os.WriteFile(knownHostsPath, []byte(contents), 0o600); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("writing ssh known hosts: %w", err)
		}
	}

	sshCmd := fmt.Sprintf(`ssh -o "BatchMode=yes" -i "%s"`, keyPath)
	if knownHostsPath != "" {
		sshCmd += fmt.Sprintf(` -o "UserKnownHostsFile=%s"`, knownHostsPath)
	}

	m := &materializedCredentials{dir: dir, sshCmd: sshCmd}
	if features.SSHViaConfig {
		m.configDec = []string{"-c", "core.sshCommand=" + sshCmd}
	} else {
		m.envDec = map[string]string{"GIT_SSH_COMMAND": sshCmd}
	}

	return m, nil
}

// decorate inserts any required -c config arguments immediately after the
// git binary name (args[0]), returning the full argv to invoke. git only
// accepts -c before the subcommand, e.g. `git -c core.sshCommand=... fetch`
func (m *materializedCredentials) decorate(args []string) []string {
	if m == nil || len(m.configDec) == 0 || len(args) == 0 {
		return args
	}
	out := make([]string, 0, len(args)+len(m.configDec))
	out = append(out, args[0])
	out = append(out, m.configDec...)
	out = append(out, args[1:]...)
	return out
}

// env returns any environment overlay this credential decoration requires,
// merged on top of base
func (m *materializedCredentials) env(base map[string]string) map[string]string {
	if m == nil || len(m.envDec) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(m.envDec))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range m.envDec {
		merged[k] = v
	}
	return merged
}
