//go:build windows

package procexec

import "os/exec"

// setProcessGroup is a no-op on Windows; CREATE_NEW_PROCESS_GROUP would be
// required to send CTRL_BREAK_EVENT to descendants, which exec.Cmd cannot
// express portably here. Termination falls back to killing the immediate
// child only.
func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}
