package gitpoller

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaterializeCredentials_Disabled(t *testing.T) {
	m, err := materializeCredentials(t.TempDir(), sshCredentials{}, FeatureSet{SSHViaConfig: true}, "2.39.0")
	require.NoError(t, err)
	require.Empty(t, m.configDec)
	require.Empty(t, m.envDec)
	require.NoError(t, m.Close())
}

func TestMaterializeCredentials_TooOldGit(t *testing.T) {
	_, err := materializeCredentials(t.TempDir(), sshCredentials{PrivateKey: "key-material"}, FeatureSet{}, "1.7.0")
	require.Error(t, err)
	require.ErrorAs(t, err, &ErrSSHUnsupported{})
}

func TestMaterializeCredentials_ViaConfig(t *testing.T) {
	workdir := t.TempDir()
	m, err := materializeCredentials(workdir, sshCredentials{PrivateKey: "key-material"}, FeatureSet{SSHViaConfig: true, SSHViaEnv: true}, "2.39.0")
	require.NoError(t, err)
	defer m.Close()

	require.Len(t, m.configDec, 2)
	require.Equal(t, "-c", m.configDec[0])
	require.Contains(t, m.configDec[1], "core.sshCommand=")
	require.Empty(t, m.envDec)

	keyPath := filepath.Join(workdir, credentialScratchDir, "ssh-key")
	contents, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	require.Equal(t, "key-material\n", string(contents))

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o400), info.Mode().Perm())
}

func TestMaterializeCredentials_ViaEnv(t *testing.T) {
	workdir := t.TempDir()
	m, err := materializeCredentials(workdir, sshCredentials{PrivateKey: "key-material", HostKey: "ssh-ed25519 AAAA"}, FeatureSet{SSHViaEnv: true}, "2.5.0")
	require.NoError(t, err)
	defer m.Close()

	require.Empty(t, m.configDec)
	require.Contains(t, m.envDec["GIT_SSH_COMMAND"], "ssh -o")

	knownHosts, err := os.ReadFile(filepath.Join(workdir, credentialScratchDir, "ssh-known-hosts"))
	require.NoError(t, err)
	require.Equal(t, "* ssh-ed25519 AAAA", string(knownHosts))
}

func TestMaterializeCredentials_ClosedRemovesScratchDir(t *testing.T) {
	workdir := t.TempDir()
	m, err := materializeCredentials(workdir, sshCredentials{PrivateKey: "key-material"}, FeatureSet{SSHViaConfig: true}, "2.39.0")
	require.NoError(t, err)

	dir := filepath.Join(workdir, credentialScratchDir)
	require.DirExists(t, dir)

	require.NoError(t, m.Close())
	require.NoDirExists(t, dir)
}

func TestMaterializedCredentials_Decorate(t *testing.T) {
	m := &materializedCredentials{configDec: []string{"-c", "core.sshCommand=ssh"}}

	got := m.decorate([]string{"git", "fetch", "origin"})
	require.Equal(t, []string{"git", "-c", "core.sshCommand=ssh", "fetch", "origin"}, got)

	var nilM *materializedCredentials
	require.Equal(t, []string{"git", "fetch"}, nilM.decorate([]string{"git", "fetch"}))
}
