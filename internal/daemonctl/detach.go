package daemonctl

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"kubeport/internal/config"
	"kubeport/internal/ipc"
	"kubeport/internal/logging"
	"kubeport/internal/portforward"
)

// Hidden command names used when kubeport re-executes itself.
const (
	StepDetach = "detach"
	StepDaemon = "daemon"
)

var command = exec.Command

// Options describes one daemon: its endpoint identity, its port-forward
// target, and how to re-execute kubeport to reach it.
type Options struct {
	Config *config.Config
	// ConfigPath is forwarded to the re-executed steps so they load the same
	// configuration. Empty means the default lookup.
	ConfigPath string
	LogLevel   string
	// Executable is the kubeport binary to re-execute. Defaults to os.Executable.
	Executable string

	Project string
	Service string
	Target  portforward.Target

	// Status receives user-facing progress, normally a compose status logger.
	Status *slog.Logger
	// Stdout and Stderr are handed to the intermediate step so its own
	// status lines reach the caller. Default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) status() *slog.Logger {
	if o.Status == nil {
		return logging.NewNop()
	}
	return o.Status
}

func (o Options) executable() (string, error) {
	if exe := strings.TrimSpace(o.Executable); exe != "" {
		return exe, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

// StepArgs returns the argv (without the program name) that runs step for
// this daemon.
func (o Options) StepArgs(step string) []string {
	args := []string{step}
	if o.ConfigPath != "" {
		args = append(args, "--config", o.ConfigPath)
	}
	if o.LogLevel != "" {
		args = append(args, "--log-level", o.LogLevel)
	}
	return append(args,
		"--project-name", o.Project,
		"--resource", o.Target.Resource,
		"--port-mapping", o.Target.PortMapping,
		"--", o.Service,
	)
}

// SocketPath resolves the daemon's control endpoint.
func (o Options) SocketPath() (string, error) {
	if o.Config == nil {
		return "", fmt.Errorf("config is required")
	}
	return ipc.SocketPath(o.Config.Paths.SocketDir, o.Project, o.Service, o.Config.Paths.SocketExt)
}

// LogPath returns the file that receives the daemon's output:
// <log_dir>/<project>/<service>.log, escaped like the socket path.
func LogPath(cfg *config.Config, project, service string) string {
	return filepath.Join(cfg.Paths.LogDir, ipc.EscapeName(project), ipc.EscapeName(service)+".log")
}

// Detach is the intermediate step. It starts the daemon step with stdin on
// /dev/null, stdout and stderr appended to the service log, and / as working
// directory, then releases it. The caller exits right after, which leaves the
// daemon orphaned inside the session the launcher created.
func Detach(opts Options) (int, error) {
	if opts.Config == nil {
		return 0, fmt.Errorf("config is required")
	}
	exe, err := opts.executable()
	if err != nil {
		return 0, err
	}

	logPath := LogPath(opts.Config, opts.Project, opts.Service)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := command(exe, opts.StepArgs(StepDaemon)...)
	cmd.Stdin = devNull
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = "/"
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release daemon: %w", err)
	}
	return pid, nil
}
