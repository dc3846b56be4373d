package supervisor

import (
	"io"
	"os"
	"os/exec"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// terminal is the tty the child shares with us, captured before spawn.
type terminal struct {
	file  *os.File
	fd    int
	state *term.State

	// foreground is set when we own the terminal's foreground process
	// group and hand it to the child.
	foreground bool
}

func captureTerminal(r io.Reader) *terminal {
	f, ok := r.(*os.File)
	if !ok {
		return nil
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	state, err := term.GetState(fd)
	if err != nil {
		return nil
	}
	t := &terminal{file: f, fd: fd, state: state}
	if pgrp, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP); err == nil && pgrp == unix.Getpgrp() {
		t.foreground = true
	}
	return t
}

// restore puts back the modes captured before spawn, falling back to
// "stty sane".
func (t *terminal) restore() error {
	if err := term.Restore(t.fd, t.state); err == nil {
		return nil
	}
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = t.file
	return cmd.Run()
}

// reclaim makes our process group the foreground group again. SIGTTOU is
// ignored for the call since we are a background group at that point.
func (t *terminal) reclaim() error {
	if !t.foreground {
		return nil
	}
	signal.Ignore(unix.SIGTTOU)
	defer signal.Reset(unix.SIGTTOU)
	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, unix.Getpgrp())
}
