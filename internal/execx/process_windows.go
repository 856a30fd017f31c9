//go:build windows

package execx

import (
	"os/exec"
	"time"
)

func prepareCommand(cmd *exec.Cmd) {}

// terminate kills the direct child only; Windows needs job objects to reach
// the whole tree.
func terminate(cmd *exec.Cmd, _ time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
