package proctree_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/systmms/openclaw-secure/internal/proctree"
)

// running reports whether pid exists and is not a zombie.
func running(pid int) bool {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return false
	}
	stat, err := p.Stat()
	if err != nil {
		return false
	}
	return stat.State != "Z"
}

func TestKillTreeRealProcesses(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not installed")
	}

	cmd := exec.Command("sh", "-c", `sh -c "sleep 100" & wait`)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	lister, err := proctree.NewProcfsLister()
	require.NoError(t, err)

	ctx := context.Background()
	var descendants []int
	require.Eventually(t, func() bool {
		descendants, err = proctree.Descendants(ctx, lister, cmd.Process.Pid)
		return err == nil && len(descendants) >= 1
	}, 5*time.Second, 50*time.Millisecond, "the background shell should appear")

	k := proctree.NewKiller(nil, nil)
	k.Lister = lister
	require.NoError(t, k.KillTree(ctx, cmd.Process.Pid, unix.SIGKILL))

	_ = cmd.Wait()
	for _, pid := range descendants {
		assert.Eventually(t, func() bool { return !running(pid) }, 2*time.Second, 20*time.Millisecond,
			"descendant %d survived", pid)
	}
}
