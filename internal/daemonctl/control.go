package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"kubeport/internal/config"
	"kubeport/internal/deps"
	"kubeport/internal/ipc"
	"kubeport/internal/logging"
	"kubeport/internal/protocol"
)

var (
	// ErrAlreadyRunning reports a live daemon already serving the endpoint.
	ErrAlreadyRunning = fmt.Errorf("daemon already running: %w", ipc.ErrAddrInUse)
	// ErrUnhealthy reports a daemon that answered Health with Err.
	ErrUnhealthy = errors.New("daemon reported unhealthy")
)

const (
	launchLockSuffix = ".up.lock"
	launchLockRetry  = 50 * time.Millisecond
)

// ConnectPolicy returns the configured connect retry budget.
func ConnectPolicy(cfg *config.Config) ipc.RetryPolicy {
	return ipc.RetryPolicy{Attempts: cfg.Client.ConnectAttempts, Delay: cfg.ConnectDelay()}
}

// DisconnectPolicy returns the configured disconnect retry budget.
func DisconnectPolicy(cfg *config.Config) ipc.RetryPolicy {
	return ipc.RetryPolicy{Attempts: cfg.Client.DisconnectAttempts, Delay: cfg.DisconnectDelay()}
}

// Up launches a detached daemon for opts and confirms it with one Health
// round trip. It refuses to launch when a daemon already answers on the
// endpoint. Concurrent Up calls for the same endpoint are serialized, so only
// the first one launches and the others see its daemon.
func Up(ctx context.Context, opts Options) error {
	if err := opts.Target.Validate(); err != nil {
		return fmt.Errorf("invalid port-forward target: %w", err)
	}
	path, err := opts.SocketPath()
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}
	status := opts.status()

	unlock, err := lockLaunch(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if resp, probeErr := ipc.Probe(ctx, path); probeErr == nil {
		return fmt.Errorf("%w: %s answered %s", ErrAlreadyRunning, path, resp)
	}
	if err := deps.Require(deps.Kubectl(opts.Config.Kubectl)); err != nil {
		return fmt.Errorf("missing dependency: %w", err)
	}

	status.Info("starting port-forward",
		logging.String("resource", opts.Target.Resource),
		logging.String("ports", opts.Target.PortMapping),
		logging.String(logging.FieldSocket, path))

	launchErr := launch(ctx, opts)
	if launchErr != nil {
		status.Debug("intermediate process exited abnormally", logging.Error(launchErr))
	}

	client, err := ipc.Connect(ctx, path, ConnectPolicy(opts.Config), ipc.WithClientLogger(status))
	if err != nil {
		return errors.Join(fmt.Errorf("connect to daemon: %w", err), launchErr)
	}
	defer client.Close()

	resp, err := client.Request(protocol.Health)
	if err != nil {
		return errors.Join(fmt.Errorf("health check: %w", err), launchErr)
	}
	if resp != protocol.Ok {
		return fmt.Errorf("%w: see %s", ErrUnhealthy, LogPath(opts.Config, opts.Project, opts.Service))
	}

	attrs := []logging.Attr{
		logging.String("resource", opts.Target.Resource),
		logging.String("ports", opts.Target.PortMapping),
	}
	if port := opts.Target.LocalPort(); port != "" {
		attrs = append(attrs, logging.String("local_port", port))
	}
	status.Info("port-forward running", logging.Args(attrs...)...)
	return nil
}

// lockLaunch holds <socket>.up.lock for the duration of one Up. The lock file
// stays behind like the endpoint lock.
func lockLaunch(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create endpoint directory: %w", err)
	}
	lock := flock.New(path + launchLockSuffix)
	locked, err := lock.TryLockContext(ctx, launchLockRetry)
	if err != nil {
		return nil, fmt.Errorf("wait for concurrent launch: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("wait for concurrent launch: lock %s not acquired", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

// launch runs the detach step in a new session and waits for it. Its exit
// only signals that the daemon was handed off; Up judges success by health.
func launch(ctx context.Context, opts Options) error {
	exe, err := opts.executable()
	if err != nil {
		return err
	}
	cmd := command(exe, opts.StepArgs(StepDetach)...)
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detach step: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = cmd.Process.Kill() })
	defer stop()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("detach step: %w", err)
	}
	return nil
}

// Down asks the daemon to stop and waits until its endpoint is gone.
func Down(ctx context.Context, opts Options) error {
	path, err := opts.SocketPath()
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}
	status := opts.status()
	status.Info("stopping port-forward", logging.String(logging.FieldSocket, path))

	client, err := ipc.Connect(ctx, path, ConnectPolicy(opts.Config), ipc.WithClientLogger(status))
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer client.Close()

	if err := client.Send(protocol.Stop); err != nil {
		return fmt.Errorf("request stop: %w", err)
	}
	if err := client.WaitForDisconnect(ctx, DisconnectPolicy(opts.Config)); err != nil {
		return fmt.Errorf("wait for shutdown: %w", err)
	}

	status.Info("port-forward stopped")
	return nil
}
