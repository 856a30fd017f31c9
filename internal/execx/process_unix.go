//go:build !windows

package execx

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// prepareCommand puts the child in its own process group so the whole tree
// can be signalled at once and terminal job control never reaches it.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the child's group and descendants, waits for
// grace, then SIGKILLs whatever is left.
func terminate(cmd *exec.Cmd, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	signalTree(pid, syscall.SIGTERM)
	if grace > 0 {
		time.Sleep(grace)
	}
	signalTree(pid, syscall.SIGKILL)
	_ = cmd.Process.Kill()
}

func signalTree(pid int, sig syscall.Signal) {
	// Collect descendants before signalling the group; once the leader dies
	// its children are reparented and the ppid chain is lost.
	pids, _ := descendantPIDs(pid)
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, sig)
	}
	for _, child := range pids {
		_ = syscall.Kill(child, sig)
	}
}

func descendantPIDs(root int) ([]int, error) {
	out, err := exec.Command("ps", "-axo", "pid=,ppid=").Output()
	if err != nil {
		return nil, err
	}
	children := make(map[int][]int)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}

	var descendants []int
	stack := []int{root}
	seen := map[int]bool{root: true}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[pid] {
			if seen[child] {
				continue
			}
			seen[child] = true
			descendants = append(descendants, child)
			stack = append(stack, child)
		}
	}
	return descendants, nil
}
