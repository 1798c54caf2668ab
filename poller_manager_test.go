package gitpoller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockingRunner signals on started the instant Run is invoked, then
// blocks until release is closed, letting a test prove two pollers are
// genuinely running concurrently rather than one after the other
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	res     RunResult
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingRunner) Run(context.Context, string, map[string]string, ...string) (RunResult, error) {
	b.started <- struct{}{}
	<-b.release
	if b.err != nil {
		return RunResult{}, b.err
	}
	return b.res, nil
}

func TestManager_PollAll_RunsPollersConcurrently(t *testing.T) {
	runnerA := newBlockingRunner()
	runnerA.res = RunResult{Stdout: "git version 2.39.2"}
	runnerB := newBlockingRunner()
	runnerB.res = RunResult{Stdout: "git version 2.39.2"}

	pollerA, err := New("repoA", &recordingIngest{}, WithRunner(runnerA), WithWorkDir(t.TempDir()))
	require.NoError(t, err)
	pollerB, err := New("repoB", &recordingIngest{}, WithRunner(runnerB), WithWorkDir(t.TempDir()))
	require.NoError(t, err)

	mgr := NewManager(pollerA, pollerB)

	done := make(chan error, 1)
	go func() { done <- mgr.PollAll(context.Background()) }()

	timeout := time.After(2 * time.Second)
	for _, runner := range []*blockingRunner{runnerA, runnerB} {
		select {
		case <-runner.started:
		case <-timeout:
			t.Fatal("poller did not start within deadline; PollAll is not running pollers concurrently")
		}
	}

	close(runnerA.release)
	close(runnerB.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("PollAll did not return after both pollers were released")
	}
}

func TestManager_PollAll_PropagatesFirstError(t *testing.T) {
	failing := &scriptedRunner{err: errBoom}
	succeeding := &scriptedRunner{stdout: "git version 2.39.2"}

	pollerA, err := New("repoA", &recordingIngest{}, WithRunner(failing), WithWorkDir(t.TempDir()))
	require.NoError(t, err)
	pollerB, err := New("repoB", &recordingIngest{}, WithRunner(succeeding), WithWorkDir(t.TempDir()))
	require.NoError(t, err)

	mgr := NewManager(pollerA, pollerB)

	pollErr := mgr.PollAll(context.Background())
	require.Error(t, pollErr)
	require.ErrorAs(t, pollErr, &ErrGitMissing{})
}
