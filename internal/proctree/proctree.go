// Package proctree finds and signals the descendants of a process.
//
// Discovery is platform dependent and hidden behind Lister: /proc is read
// directly on Linux, other systems ask pgrep.
package proctree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/systmms/openclaw-secure/internal/logging"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// Lister returns the direct children of a process.
type Lister interface {
	Children(ctx context.Context, pid int) ([]int, error)
}

// PgrepLister lists children with "pgrep -P".
type PgrepLister struct {
	Executor pkgexec.CommandExecutor
}

// Children implements Lister. pgrep exits 1 without output when there are
// no matches, which is not an error here.
func (l PgrepLister) Children(ctx context.Context, pid int) ([]int, error) {
	stdout, stderr, err := l.Executor.Execute(ctx, "pgrep", "-P", strconv.Itoa(pid))
	if err != nil {
		if len(bytes.TrimSpace(stdout)) == 0 && len(bytes.TrimSpace(stderr)) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep -P %d: %w", pid, err)
	}
	return parsePIDs(stdout)
}

func parsePIDs(out []byte) ([]int, error) {
	var pids []int
	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("unexpected pgrep output %q", field)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Descendants returns every descendant of pid, parents before children.
func Descendants(ctx context.Context, l Lister, pid int) ([]int, error) {
	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		children, err := l.Children(ctx, queue[0])
		queue = queue[1:]
		if err != nil {
			return out, err
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out, nil
}

// Killer signals whole process trees.
type Killer struct {
	Lister Lister
	Logger *logging.Logger

	// Signal delivers sig to pid. Defaults to unix.Kill.
	Signal func(pid int, sig unix.Signal) error
}

// NewKiller returns a Killer using the platform Lister.
func NewKiller(executor pkgexec.CommandExecutor, logger *logging.Logger) *Killer {
	if executor == nil {
		executor = pkgexec.DefaultExecutor()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Killer{Lister: NewLister(executor), Logger: logger, Signal: unix.Kill}
}

// KillTree sends sig to every descendant of pid and then to pid itself.
// Each child's subtree is signalled before the child, so no process is
// orphaned and re-parented before it is found. Processes that are already
// gone are ignored; the first other failure is returned after the walk.
func (k *Killer) KillTree(ctx context.Context, pid int, sig unix.Signal) error {
	var errs []error

	children, err := k.Lister.Children(ctx, pid)
	if err != nil {
		errs = append(errs, err)
	}
	for _, child := range children {
		if err := k.KillTree(ctx, child, sig); err != nil {
			errs = append(errs, err)
		}
	}

	k.Logger.Debug("sending %s to %d", unix.SignalName(sig), pid)
	if err := k.Signal(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		errs = append(errs, fmt.Errorf("signal %d: %w", pid, err))
	}
	return errors.Join(errs...)
}
