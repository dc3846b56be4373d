package supervisor_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/secure"
	"github.com/systmms/openclaw-secure/internal/supervisor"
)

type transitions struct {
	mu  sync.Mutex
	seq []supervisor.State
}

func (tr *transitions) record(_, to supervisor.State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.seq = append(tr.seq, to)
}

func (tr *transitions) states() []supervisor.State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]supervisor.State(nil), tr.seq...)
}

func newSupervisor(t *testing.T) (*supervisor.Supervisor, *transitions) {
	t.Helper()
	tr := &transitions{}
	s := supervisor.New(nil, nil)
	s.OnTransition = tr.record
	return s, tr
}

func shell(script string) supervisor.Spec {
	return supervisor.Spec{
		Command:     script,
		Shell:       true,
		GracePeriod: 300 * time.Millisecond,
		Stdin:       bytes.NewReader(nil),
		Stdout:      &bytes.Buffer{},
		Stderr:      &bytes.Buffer{},
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "spawning", supervisor.Spawning.String())
	assert.Equal(t, "terminating", supervisor.Terminating.String())
	assert.Equal(t, "State(9)", supervisor.State(9).String())
}

func TestForwardsSIGTERM(t *testing.T) {
	// Not parallel: signals the test process itself.
	s, tr := newSupervisor(t)
	spec := shell(`trap 'exit 7' TERM; while :; do sleep 0.05; done`)

	require.NoError(t, s.Start(context.Background(), spec))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGTERM))

	res, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.False(t, res.Forced)
	assert.Equal(t, []supervisor.State{supervisor.Running, supervisor.Terminating, supervisor.Exited}, tr.states())
}

func TestSIGINTIsForwardedWithoutTerminal(t *testing.T) {
	// Not parallel: signals the test process itself.
	s, tr := newSupervisor(t)
	spec := shell(`trap 'exit 42' INT; sleep 2 & wait; exit 0`)

	require.NoError(t, s.Start(context.Background(), spec))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGINT))

	res, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, res.ExitCode, "the child handles the interrupt itself")
	assert.False(t, res.Forced)
	assert.NotContains(t, tr.states(), supervisor.Terminating)
}

func TestExitCodePassthrough(t *testing.T) {
	t.Parallel()

	s, tr := newSupervisor(t)
	res, err := s.Run(context.Background(), shell("exit 3"))
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, supervisor.Exited, s.State())
	assert.Equal(t, []supervisor.State{supervisor.Running, supervisor.Exited}, tr.states())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestDirectArgv(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	spec := supervisor.Spec{Command: "echo", Args: []string{"hello", "$HOME"}, Stdout: &out, Stdin: bytes.NewReader(nil)}
	res, err := supervisor.New(nil, nil).Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "hello $HOME\n", out.String(), "argv is not shell-expanded")
}

func TestEnvOverlay(t *testing.T) {
	t.Parallel()

	env := secure.NewEnv()
	defer env.Destroy()
	env.Set("OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN", "tok-123")

	var out bytes.Buffer
	spec := shell(`printf '%s|%s' "$OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN" "$KEEP"`)
	spec.Env = env
	spec.BaseEnv = []string{"PATH=" + os.Getenv("PATH"), "KEEP=yes", "OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN=stale"}
	spec.Stdout = &out

	res, err := supervisor.New(nil, nil).Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "tok-123|yes", out.String())
}

func TestSpawnFailure(t *testing.T) {
	t.Parallel()

	s, tr := newSupervisor(t)
	res, err := s.Run(context.Background(), supervisor.Spec{Command: "openclaw-secure-no-such-binary"})

	var spawnErr *apperrors.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "openclaw-secure-no-such-binary", spawnErr.Command)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, []supervisor.State{supervisor.Exited}, tr.states())
}

func TestTerminateGraceful(t *testing.T) {
	t.Parallel()

	s, _ := newSupervisor(t)
	require.NoError(t, s.Start(context.Background(), shell("exec sleep 30")))

	s.Terminate()
	s.Terminate()

	res, err := s.Wait()
	require.NoError(t, err)
	assert.False(t, res.Forced)
	assert.Equal(t, unix.SIGTERM, res.Signal)
	assert.Equal(t, 128+int(unix.SIGTERM), res.ExitCode)
}

func TestContextCancelTerminates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s, tr := newSupervisor(t)
	require.NoError(t, s.Start(ctx, shell("exec sleep 30")))

	cancel()
	res, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 143, res.ExitCode)
	assert.Contains(t, tr.states(), supervisor.Terminating)
}

func TestForcedKillAfterGracePeriod(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not installed")
	}

	s, _ := newSupervisor(t)
	spec := shell(`trap '' TERM; sleep 30; exit 0`)
	spec.GracePeriod = 200 * time.Millisecond

	require.NoError(t, s.Start(context.Background(), spec))
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	s.Terminate()
	res, err := s.Wait()
	require.NoError(t, err)

	assert.True(t, res.Forced)
	assert.Equal(t, 1, res.ExitCode)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Less(t, time.Since(start), 10*time.Second)
}
