package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kubeport/internal/config"
	"kubeport/internal/deps"
	"kubeport/internal/ipc"
	"kubeport/internal/logging"
	"kubeport/internal/portforward"
	"kubeport/internal/supervisor"
)

// Options configures daemon process runtime behavior.
type Options struct {
	Config  *config.Config
	Project string
	Service string
	Target  portforward.Target

	// Logger overrides the logger built from Config.
	Logger *slog.Logger
	// Output receives the port-forward child's stdout and stderr. Defaults
	// to os.Stderr, which the detach step points at the service log file.
	Output io.Writer
}

// Run binds the control endpoint, starts the port-forward child and serves
// control requests until Stop, SIGINT, SIGTERM or ctx cancellation. The child
// is always terminated before the endpoint is removed.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := opts.Target.Validate(); err != nil {
		return fmt.Errorf("invalid port-forward target: %w", err)
	}
	socketPath, err := ipc.SocketPath(cfg.Paths.SocketDir, opts.Project, opts.Service, cfg.Paths.SocketExt)
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}
	policy, err := supervisor.ParsePolicy(cfg.Supervisor.Restart)
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.NewFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	logger = logger.With(
		logging.String(logging.FieldRunID, uuid.NewString()),
		logging.String(logging.FieldProject, opts.Project),
		logging.String(logging.FieldService, opts.Service),
	)

	logDependencySnapshot(logger, cfg)

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	name, args := portforward.Command(cfg.Kubectl, opts.Target)
	sup := supervisor.New(name, args,
		supervisor.WithLogger(logger),
		supervisor.WithPolicy(policy, cfg.RestartDelay()),
		supervisor.WithStopTimeout(cfg.StopTimeout()),
		supervisor.WithOutput(output),
	)

	server, err := ipc.Listen(socketPath,
		ipc.WithLogger(logger),
		ipc.WithHealthProbe(sup.Running),
		ipc.WithPollInterval(cfg.PollInterval()),
		ipc.WithIdleTimeout(cfg.IdleTimeout()),
	)
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	defer server.Close()

	if err := sup.Start(); err != nil {
		return fmt.Errorf("start port-forward: %w", err)
	}

	logger.Info("kubeport daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String(logging.FieldSocket, server.Path()),
		logging.Int(logging.FieldPID, os.Getpid()),
		logging.String("resource", opts.Target.Resource),
		logging.String("port_mapping", opts.Target.PortMapping),
	)

	shutdown := make(chan struct{})
	var group errgroup.Group
	group.Go(func() error {
		return sup.Run(shutdown)
	})
	group.Go(func() error {
		defer close(shutdown)
		err := server.Serve(signalCtx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Info("shutdown signal received")
			return nil
		default:
			return fmt.Errorf("serve control requests: %w", err)
		}
	})

	err = group.Wait()
	if err != nil {
		logging.ErrorWithContext(logger, "kubeport daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket and run compose up again"),
		)
		return err
	}
	logger.Info("kubeport daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	kubectl := deps.Check(deps.Kubectl(cfg.Kubectl))
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("kubectl_available", kubectl.Available),
		logging.String("kubectl_binary", kubectl.Command),
		logging.String("kubectl_path", kubectl.Path),
		logging.String("kubectl_context", cfg.Kubectl.Context),
		logging.String("kubectl_namespace", cfg.Kubectl.Namespace),
		logging.String("restart_policy", cfg.Supervisor.Restart),
	)
}
