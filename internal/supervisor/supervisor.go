// Package supervisor runs the gateway (or any command) as a child process
// and owns its lifecycle: environment injection, signal handling, graceful
// then forced termination, and terminal recovery.
//
// A Supervisor moves through Spawning, Running, Terminating and Exited.
// One goroutine drives the state machine; signal delivery and the child's
// Wait only send on channels. The grace timer is the only timer and is
// stopped when the child exits first.
package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sys/unix"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/internal/metrics"
	"github.com/systmms/openclaw-secure/internal/proctree"
	"github.com/systmms/openclaw-secure/internal/secure"
)

// Spec describes the child to run.
type Spec struct {
	// Command is the program, or with Shell a script for "sh -c".
	Command string
	Args    []string
	Shell   bool

	// Env is overlaid on BaseEnv; its values win. BaseEnv defaults to
	// os.Environ().
	Env     *secure.Env
	BaseEnv []string
	Dir     string

	// GracePeriod between SIGTERM and SIGKILL. Defaults to 5s.
	GracePeriod time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (s Spec) argv() (string, []string) {
	if s.Shell {
		script := s.Command
		if len(s.Args) > 0 {
			script += " " + strings.Join(s.Args, " ")
		}
		return "sh", []string{"-c", script}
	}
	return s.Command, s.Args
}

func (s Spec) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// Result is how the child ended.
type Result struct {
	ExitCode int
	// Forced is set when the tree had to be killed after the grace period.
	Forced bool
	// Signal is the signal that ended the child, if any.
	Signal syscall.Signal
}

// Supervisor runs a single child. It is not reusable.
type Supervisor struct {
	Logger *logging.Logger
	Killer *proctree.Killer
	Clock  clock.Clock

	// OnTransition, when set, is called synchronously on every state
	// change.
	OnTransition func(from, to State)

	mu    sync.Mutex
	state State
	pid   int

	terminate     chan struct{}
	terminateOnce sync.Once
	done          chan struct{}
	result        Result
	err           error
}

// New returns a Supervisor in the Spawning state.
func New(logger *logging.Logger, killer *proctree.Killer) *Supervisor {
	if logger == nil {
		logger = logging.Discard()
	}
	if killer == nil {
		killer = proctree.NewKiller(nil, logger)
	}
	return &Supervisor{
		Logger:    logger,
		Killer:    killer,
		Clock:     clock.WallClock,
		terminate: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pid returns the child's pid, 0 before it is running.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Done is closed once the child has exited or failed to spawn.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Terminate asks the supervisor to stop the child. It returns immediately.
func (s *Supervisor) Terminate() {
	s.terminateOnce.Do(func() { close(s.terminate) })
}

// Run starts the child and waits for it to exit.
func (s *Supervisor) Run(ctx context.Context, spec Spec) (Result, error) {
	if err := s.Start(ctx, spec); err != nil {
		return s.result, err
	}
	return s.Wait()
}

// Wait blocks until the child has exited.
func (s *Supervisor) Wait() (Result, error) {
	<-s.done
	return s.result, s.err
}

func (s *Supervisor) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.Logger.Debug("child %s -> %s", from, to)
	if s.OnTransition != nil {
		s.OnTransition(from, to)
	}
}

// Start spawns the child and returns once it is running. Cancelling ctx,
// SIGTERM or SIGHUP to this process, or Terminate begin termination.
func (s *Supervisor) Start(ctx context.Context, spec Spec) error {
	if spec.GracePeriod <= 0 {
		spec.GracePeriod = catalog.DefaultGracePeriod
	}
	if spec.BaseEnv == nil {
		spec.BaseEnv = os.Environ()
	}
	if spec.Stdin == nil {
		spec.Stdin = os.Stdin
	}
	if spec.Stdout == nil {
		spec.Stdout = os.Stdout
	}
	if spec.Stderr == nil {
		spec.Stderr = os.Stderr
	}

	name, args := spec.argv()
	if _, err := exec.LookPath(name); err != nil {
		return s.spawnFailed(spec, apperrors.WrapCommandNotFound(name, err))
	}

	env := spec.BaseEnv
	if spec.Env != nil {
		var err error
		if env, err = spec.Env.Environ(spec.BaseEnv); err != nil {
			return s.spawnFailed(spec, err)
		}
	}

	cmd := exec.Command(name, args...)
	cmd.Env = env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	tty := captureTerminal(spec.Stdin)
	if tty != nil && tty.foreground {
		cmd.SysProcAttr.Foreground = true
		cmd.SysProcAttr.Ctty = tty.fd
	}

	// Registered before the child exists so an early SIGTERM is not lost.
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, unix.SIGTERM, unix.SIGHUP, unix.SIGINT)

	if err := cmd.Start(); err != nil {
		signal.Stop(sigCh)
		return s.spawnFailed(spec, err)
	}

	s.mu.Lock()
	s.pid = cmd.Process.Pid
	s.mu.Unlock()
	s.Logger.Debug("started %q as pid %d with %d injected variables", spec.String(), cmd.Process.Pid, spec.Env.Len())
	s.transition(Running)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	go s.monitor(ctx, cmd.Process, spec, tty, sigCh, waitCh)
	return nil
}

func (s *Supervisor) spawnFailed(spec Spec, err error) error {
	s.result = Result{ExitCode: 1}
	s.err = &apperrors.SpawnError{Command: spec.String(), Err: err}
	s.transition(Exited)
	metrics.RecordChildExit("spawn_failed")
	close(s.done)
	return s.err
}

func (s *Supervisor) monitor(ctx context.Context, proc *os.Process, spec Spec, tty *terminal, sigCh chan os.Signal, waitCh <-chan error) {
	defer signal.Stop(sigCh)

	var (
		grace       clock.Timer
		graceCh     <-chan time.Time
		terminating bool
		forced      bool
		terminateCh = s.terminate
		ctxDone     = ctx.Done()
	)

	begin := func(reason string) {
		if terminating {
			return
		}
		terminating = true
		s.Logger.Debug("terminating pid %d: %s", proc.Pid, reason)
		s.transition(Terminating)
		if err := proc.Signal(unix.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.Logger.Debug("SIGTERM to %d failed: %v", proc.Pid, err)
		}
		grace = s.Clock.NewTimer(spec.GracePeriod)
		graceCh = grace.Chan()
	}

	for {
		select {
		case err := <-waitCh:
			if grace != nil {
				grace.Stop()
			}
			s.finish(exitResult(err, forced), tty)
			return

		case sig := <-sigCh:
			if sig == unix.SIGINT {
				if tty != nil && tty.foreground {
					// The child owns the terminal and gets its own SIGINT.
					s.Logger.Debug("ignoring SIGINT, left to the child")
					continue
				}
				// The child runs in its own process group, so a SIGINT not
				// sent by the terminal never reaches it on its own.
				s.Logger.Debug("forwarding SIGINT to process group %d", proc.Pid)
				if err := unix.Kill(-proc.Pid, unix.SIGINT); err != nil && !errors.Is(err, unix.ESRCH) {
					s.Logger.Debug("SIGINT to group %d failed: %v", proc.Pid, err)
				}
				continue
			}
			begin(sig.String())

		case <-terminateCh:
			terminateCh = nil
			begin("termination requested")

		case <-ctxDone:
			ctxDone = nil
			begin(ctx.Err().Error())

		case <-graceCh:
			graceCh = nil
			forced = true
			s.Logger.Warn("%s did not exit within %s, killing its process tree", spec.String(), spec.GracePeriod)
			if err := s.Killer.KillTree(context.Background(), proc.Pid, unix.SIGKILL); err != nil {
				s.Logger.Debug("kill tree: %v", err)
			}
			// Stragglers that left the tree but kept the process group.
			_ = unix.Kill(-proc.Pid, unix.SIGKILL)
		}
	}
}

func exitResult(err error, forced bool) Result {
	res := Result{Forced: forced}
	if err == nil {
		if forced {
			res.ExitCode = 1
		}
		return res
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		res.ExitCode = 1
		return res
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		res.Signal = ws.Signal()
		res.ExitCode = 128 + int(ws.Signal())
	} else {
		res.ExitCode = exitErr.ExitCode()
	}
	if forced {
		res.ExitCode = 1
	}
	return res
}

func (s *Supervisor) finish(res Result, tty *terminal) {
	if tty != nil {
		if err := tty.reclaim(); err != nil {
			s.Logger.Debug("reclaiming terminal: %v", err)
		}
		if res.ExitCode != 0 {
			if err := tty.restore(); err != nil {
				s.Logger.Debug("restoring terminal: %v", err)
			}
		}
	}

	reason := "exited"
	switch {
	case res.Forced:
		reason = "forced"
	case res.Signal != 0:
		reason = "signaled"
	}
	metrics.RecordChildExit(reason)

	s.result = res
	s.transition(Exited)
	close(s.done)
}
