// ABOUTME: Unix process-group handling so timeouts kill the compiler and its children
// ABOUTME: The JVM launcher forks; signalling the group avoids orphaned processes

//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// configureProcessGroup also kills the whole group when the command's
// context ends. cmd must come from exec.CommandContext.
func configureProcessGroup(cmd *exec.Cmd) {
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return kill(cmd) }
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func terminate(cmd *exec.Cmd) error { return signalGroup(cmd, syscall.SIGTERM) }

func kill(cmd *exec.Cmd) error { return signalGroup(cmd, syscall.SIGKILL) }
