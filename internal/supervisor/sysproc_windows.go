//go:build windows

package supervisor

import "os/exec"

func shellPath() []string {
	return []string{"cmd", "/C"}
}

func setProcGroup(cmd *exec.Cmd) {}

// Windows has no graceful console signal for a detached child; both
// paths fall through to Process.Kill.
func terminate(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func kill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
