package supervisor

import (
	"os/exec"
	"syscall"
)

// configureChild asks the kernel to kill the child if the daemon dies first,
// so a SIGKILLed daemon cannot leave kubectl holding the local port.
func configureChild(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
