//go:build unix

package apprunner

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the app in its own process group so children of a
// wrapper script are signalled with it
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	return syscall.Kill(-cmd.Process.Pid, sig)
}
