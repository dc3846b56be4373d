package proctree

import (
	"context"

	"github.com/prometheus/procfs"

	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// ProcfsLister reads parent pids from /proc.
type ProcfsLister struct {
	fs procfs.FS
}

// NewProcfsLister opens the default /proc mount.
func NewProcfsLister() (*ProcfsLister, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &ProcfsLister{fs: fs}, nil
}

// Children implements Lister. Processes that exit during the scan are
// skipped.
func (l *ProcfsLister) Children(ctx context.Context, pid int) ([]int, error) {
	procs, err := l.fs.AllProcs()
	if err != nil {
		return nil, err
	}
	var children []int
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		if stat.PPID == pid {
			children = append(children, p.PID)
		}
	}
	return children, nil
}

// NewLister prefers /proc and falls back to pgrep when it is not mounted.
func NewLister(executor pkgexec.CommandExecutor) Lister {
	if l, err := NewProcfsLister(); err == nil {
		return l
	}
	return PgrepLister{Executor: executor}
}
