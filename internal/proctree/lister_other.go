//go:build !linux

package proctree

import pkgexec "github.com/systmms/openclaw-secure/pkg/exec"

// NewLister returns a pgrep based Lister.
func NewLister(executor pkgexec.CommandExecutor) Lister {
	return PgrepLister{Executor: executor}
}
