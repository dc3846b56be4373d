package supervisor_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/proctree"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// alive reports whether pid exists and is not a zombie.
func alive(pid int) bool {
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

func TestForcedKillTakesDownDescendants(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not installed")
	}

	s, _ := newSupervisor(t)
	spec := shell(`trap '' TERM; sleep 30 & sleep 30 & wait`)
	spec.GracePeriod = 200 * time.Millisecond

	require.NoError(t, s.Start(context.Background(), spec))

	lister := proctree.NewLister(pkgexec.DefaultExecutor())
	var descendants []int
	require.Eventually(t, func() bool {
		pids, err := proctree.Descendants(context.Background(), lister, s.Pid())
		if err != nil {
			return false
		}
		descendants = pids
		return len(pids) >= 2
	}, 2*time.Second, 20*time.Millisecond, "both background sleeps should be running")

	s.Terminate()
	res, err := s.Wait()
	require.NoError(t, err)
	assert.True(t, res.Forced)
	assert.Equal(t, 1, res.ExitCode)

	for _, pid := range descendants {
		assert.Eventually(t, func() bool { return !alive(pid) }, 2*time.Second, 20*time.Millisecond,
			"descendant %d survived the forced kill", pid)
	}
}
