package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"kubeport/internal/testsupport"
)

func setHelperCommand(t *testing.T, mode string, extraEnv ...string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("SUPERVISOR_HELPER_MODE=%s", mode))
		cmd.Env = append(cmd.Env, extraEnv...)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("SUPERVISOR_HELPER_MODE") {
	case "forward":
		fmt.Println("Forwarding from 127.0.0.1:8080 -> 80")
		time.Sleep(time.Minute)
		os.Exit(0)
	case "exit":
		fmt.Fprintln(os.Stderr, "error: pods \"x\" not found")
		os.Exit(1)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		time.Sleep(time.Minute)
		os.Exit(0)
	case "exit-once":
		marker := os.Getenv("SUPERVISOR_HELPER_MARKER")
		if _, err := os.Stat(marker); errors.Is(err, os.ErrNotExist) {
			_ = os.WriteFile(marker, nil, 0o644)
			os.Exit(1)
		}
		time.Sleep(time.Minute)
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func runAsync(s *Supervisor, shutdown chan struct{}) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(shutdown) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func processGone(pid int) bool {
	return errors.Is(unix.Kill(pid, 0), unix.ESRCH)
}

func TestShutdownTerminatesChild(t *testing.T) {
	setHelperCommand(t, "forward")
	var out syncBuffer
	s := New("kubectl", []string{"port-forward", "deployment/x", "8080:80"}, WithOutput(&out))

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Running() {
		t.Fatalf("expected running child, state=%s", s.State())
	}
	pid := s.PID()

	shutdown := make(chan struct{})
	done := runAsync(s, shutdown)
	close(shutdown)
	waitRun(t, done)

	if s.State() != Exited {
		t.Fatalf("expected exited state, got %s", s.State())
	}
	if !processGone(pid) {
		t.Fatalf("child %d still running after shutdown", pid)
	}
}

func TestStubbornChildIsKilledAfterStopTimeout(t *testing.T) {
	setHelperCommand(t, "stubborn")
	s := New("kubectl", nil, WithOutput(&syncBuffer{}), WithStopTimeout(200*time.Millisecond))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := s.PID()
	// Give the helper time to install its SIGTERM handler.
	time.Sleep(200 * time.Millisecond)

	shutdown := make(chan struct{})
	done := runAsync(s, shutdown)
	start := time.Now()
	close(shutdown)
	waitRun(t, done)

	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected SIGKILL only after the stop timeout, returned in %s", elapsed)
	}
	if !processGone(pid) {
		t.Fatalf("stubborn child %d survived", pid)
	}
}

func TestExitWithoutRestartStaysExited(t *testing.T) {
	setHelperCommand(t, "exit")
	s := New("kubectl", nil, WithOutput(&syncBuffer{}))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	shutdown := make(chan struct{})
	done := runAsync(s, shutdown)

	testsupport.Eventually(t, 5*time.Second, "child exit", func() bool { return s.State() == Exited })
	time.Sleep(100 * time.Millisecond)
	if s.Restarts() != 0 {
		t.Fatalf("expected no restarts, got %d", s.Restarts())
	}
	select {
	case err := <-done:
		t.Fatalf("Run returned before shutdown: %v", err)
	default:
	}

	close(shutdown)
	waitRun(t, done)
}

func TestExitWithRestartRespawns(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "exited-once")
	setHelperCommand(t, "exit-once", "SUPERVISOR_HELPER_MARKER="+marker)
	s := New("kubectl", nil, WithOutput(&syncBuffer{}), WithPolicy(RestartOnExit, 10*time.Millisecond))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	shutdown := make(chan struct{})
	done := runAsync(s, shutdown)

	testsupport.Eventually(t, 10*time.Second, "respawned child", func() bool {
		return s.Restarts() == 1 && s.Running()
	})
	pid := s.PID()

	close(shutdown)
	waitRun(t, done)
	if !processGone(pid) {
		t.Fatalf("respawned child %d still running", pid)
	}
}

func TestStartFailureIsReported(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing-kubectl"), nil)
	if err := s.Start(); err == nil {
		t.Fatal("expected Start to fail for a missing binary")
	}
	if s.State() != Idle {
		t.Fatalf("expected idle state after failed start, got %s", s.State())
	}
	if err := s.Run(make(chan struct{})); !errors.Is(err, errNotStarted) {
		t.Fatalf("expected errNotStarted, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("never"); err != nil || p != RestartNever {
		t.Fatalf("never: %v %v", p, err)
	}
	if p, err := ParsePolicy("on-exit"); err != nil || p != RestartOnExit {
		t.Fatalf("on-exit: %v %v", p, err)
	}
	if _, err := ParsePolicy("always"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
