// ABOUTME: Fallback process termination for platforms without process groups
// ABOUTME: Kills only the direct child

//go:build !unix

package process

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

// configureProcessGroup requires a command from exec.CommandContext.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return kill(cmd) }
}

func terminate(cmd *exec.Cmd) error { return kill(cmd) }

func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
