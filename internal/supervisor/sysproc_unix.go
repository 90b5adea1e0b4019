//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// shellPath returns the system shell used for command wrapping.
func shellPath() []string {
	return []string{"/bin/sh", "-c"}
}

// setProcGroup puts the child in its own process group so signals reach
// the whole tree, not just the shell.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends sig to the child's process group.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

// terminate asks the child tree to exit gracefully.
func terminate(cmd *exec.Cmd) {
	_ = signalGroup(cmd, syscall.SIGTERM)
}

// kill forcefully stops the child tree.
func kill(cmd *exec.Cmd) {
	_ = signalGroup(cmd, syscall.SIGKILL)
}
