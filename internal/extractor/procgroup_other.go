// SPDX-License-Identifier: MIT

//go:build !unix

package extractor

import (
	"os/exec"
	"time"
)

func setProcGroup(_ *exec.Cmd) {}

func terminateGroup(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	select {
	case <-waitCh:
	case <-time.After(grace):
	}
}
