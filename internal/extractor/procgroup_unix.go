// SPDX-License-Identifier: MIT

//go:build unix

package extractor

import (
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// setProcGroup places the child in its own process group so the whole
// extractor tree can be signalled together.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
}

// terminateGroup stops a running process group: SIGTERM, wait up to grace,
// then SIGKILL. It drains waitCh so the Wait goroutine never leaks.
func terminateGroup(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid

	_ = unix.Kill(pgid, unix.SIGTERM)
	select {
	case <-waitCh:
		return
	case <-time.After(grace):
	}

	_ = unix.Kill(pgid, unix.SIGKILL)
	<-waitCh
}
