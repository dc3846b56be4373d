package supervisor

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func TestCaptureTerminalIgnoresPipes(t *testing.T) {
	t.Parallel()

	assert.Nil(t, captureTerminal(bytes.NewReader(nil)))
}

func TestRestoresTerminalAfterFailure(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("stty"); err != nil {
		t.Skip("stty not installed")
	}

	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tty.Close()
		_ = ptmx.Close()
	})

	before, err := term.GetState(int(tty.Fd()))
	require.NoError(t, err)

	tt := captureTerminal(tty)
	require.NotNil(t, tt)
	assert.False(t, tt.foreground, "a pty that is not our controlling terminal is never handed over")

	s := New(nil, nil)
	res, err := s.Run(context.Background(), Spec{
		Command: "stty raw -echo; exit 9",
		Shell:   true,
		Stdin:   tty,
		Stdout:  tty,
		Stderr:  tty,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, res.ExitCode)

	after, err := term.GetState(int(tty.Fd()))
	require.NoError(t, err)
	assert.Equal(t, before, after, "terminal modes are restored after a non-zero exit")
}
