package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"kubeport/internal/config"
	"kubeport/internal/logging"
)

var commandContext = exec.CommandContext

// State is the observable state of the supervised child.
type State int

const (
	Idle State = iota
	Running
	Exited
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return "idle"
	}
}

// Policy decides what happens when the child exits on its own.
type Policy int

const (
	RestartNever Policy = iota
	RestartOnExit
)

// ParsePolicy maps the supervisor.restart config value onto a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch value {
	case config.RestartNever, "":
		return RestartNever, nil
	case config.RestartOnExit:
		return RestartOnExit, nil
	default:
		return RestartNever, fmt.Errorf("unknown restart policy %q", value)
	}
}

var errNotStarted = errors.New("supervisor: Run called before Start")

// Supervisor runs one child process at a time.
type Supervisor struct {
	name         string
	args         []string
	logger       *slog.Logger
	policy       Policy
	restartDelay time.Duration
	stopTimeout  time.Duration
	output       io.Writer

	mu       sync.Mutex
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	exited   chan struct{}
	waitErr  error
	state    State
	restarts int
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithLogger routes supervisor diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPolicy sets the restart policy and the delay before a respawn.
func WithPolicy(policy Policy, delay time.Duration) Option {
	return func(s *Supervisor) {
		s.policy = policy
		if delay >= 0 {
			s.restartDelay = delay
		}
	}
}

// WithStopTimeout sets how long the child gets between SIGTERM and SIGKILL.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithOutput sets where the child's stdout and stderr go.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) { s.output = w }
}

// New prepares a supervisor for name with args. Nothing is spawned until Start.
func New(name string, args []string, opts ...Option) *Supervisor {
	s := &Supervisor{
		name:         name,
		args:         append([]string(nil), args...),
		logger:       logging.NewNop(),
		restartDelay: 2 * time.Second,
		stopTimeout:  5 * time.Second,
		output:       os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "supervisor")
	return s
}

// Start spawns the first child.
func (s *Supervisor) Start() error {
	return s.spawn()
}

func (s *Supervisor) spawn() error {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := commandContext(ctx, s.name, s.args...) //nolint:gosec
	cmd.Stdout = s.output
	cmd.Stderr = s.output
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = s.stopTimeout
	configureChild(cmd)

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", s.name, err)
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.cancel = cancel
	s.exited = exited
	s.waitErr = nil
	s.state = Running
	s.mu.Unlock()

	s.logger.Info("port-forward started",
		logging.Int(logging.FieldPID, cmd.Process.Pid),
		logging.Any("argv", cmd.Args))

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.state = Exited
		s.mu.Unlock()
		close(exited)
	}()
	return nil
}

// Run supervises the child until shutdown is closed or receives a value. The
// child is terminated before Run returns.
func (s *Supervisor) Run(shutdown <-chan struct{}) error {
	s.mu.Lock()
	started := s.cmd != nil
	s.mu.Unlock()
	if !started {
		return errNotStarted
	}
	defer s.terminate()

	for {
		select {
		case <-shutdown:
			s.logger.Info("shutdown signaled, stopping port-forward")
			return nil
		case <-s.exitedChan():
		}

		logging.WarnWithContext(s.logger, "port-forward exited unexpectedly", "child_exited",
			logging.Error(s.exitErr()),
			logging.String("restart_policy", s.policyName()),
			logging.String(logging.FieldImpact, "forwarded port is unavailable"),
			logging.String(logging.FieldErrorHint, "check kubectl output above and the target resource"))

		if s.policy == RestartNever {
			<-shutdown
			s.logger.Info("shutdown signaled with port-forward already exited")
			return nil
		}
		if !s.respawn(shutdown) {
			return nil
		}
	}
}

// respawn retries spawning after the restart delay until it succeeds or
// shutdown arrives. It reports whether a child is running again.
func (s *Supervisor) respawn(shutdown <-chan struct{}) bool {
	for {
		timer := time.NewTimer(s.restartDelay)
		select {
		case <-shutdown:
			timer.Stop()
			return false
		case <-timer.C:
		}
		if err := s.spawn(); err != nil {
			logging.WarnWithContext(s.logger, "port-forward respawn failed", "child_respawn_failed",
				logging.Error(err),
				logging.Duration("retry_in", s.restartDelay))
			continue
		}
		s.mu.Lock()
		s.restarts++
		count := s.restarts
		s.mu.Unlock()
		s.logger.Info("port-forward restarted", logging.Int("restarts", count))
		return true
	}
}

// terminate stops the current child, if any, and waits for it to be reaped.
func (s *Supervisor) terminate() {
	s.mu.Lock()
	cancel, exited, state := s.cancel, s.exited, s.state
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-exited
	if state == Running {
		s.logger.Info("port-forward stopped", logging.Error(s.exitErr()))
	}
}

func (s *Supervisor) exitedChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

func (s *Supervisor) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

func (s *Supervisor) policyName() string {
	if s.policy == RestartOnExit {
		return config.RestartOnExit
	}
	return config.RestartNever
}

// State returns the current child state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether a child is currently alive.
func (s *Supervisor) Running() bool {
	return s.State() == Running
}

// PID returns the current or last child's process id, or 0 before Start.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Restarts returns how many times the child has been respawned.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}
