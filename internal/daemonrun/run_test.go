package daemonrun_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"kubeport/internal/config"
	"kubeport/internal/daemonrun"
	"kubeport/internal/ipc"
	"kubeport/internal/logging"
	"kubeport/internal/portforward"
	"kubeport/internal/protocol"
	"kubeport/internal/testsupport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func options(cfg *config.Config, out *syncBuffer) daemonrun.Options {
	return daemonrun.Options{
		Config:  cfg,
		Project: "shop",
		Service: "db",
		Target:  portforward.Target{Resource: "service/postgres", PortMapping: "5432:5432"},
		Logger:  logging.NewNop(),
		Output:  out,
	}
}

func socketPath(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path, err := ipc.SocketPath(cfg.Paths.SocketDir, "shop", "db", cfg.Paths.SocketExt)
	if err != nil {
		t.Fatalf("SocketPath: %v", err)
	}
	return path
}

func startDaemon(t *testing.T, ctx context.Context, opts daemonrun.Options) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- daemonrun.Run(ctx, opts) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not return")
		return nil
	}
}

func connectPolicy(cfg *config.Config) ipc.RetryPolicy {
	return ipc.RetryPolicy{Attempts: cfg.Client.ConnectAttempts, Delay: cfg.ConnectDelay()}
}

func TestRunServesHealthAndStopsOnRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithForwardingKubectl())
	out := &syncBuffer{}
	done := startDaemon(t, context.Background(), options(cfg, out))
	path := socketPath(t, cfg)

	client, err := ipc.Connect(context.Background(), path, connectPolicy(cfg))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	resp, err := client.Request(protocol.Health)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp != protocol.Ok {
		t.Fatalf("Health = %s, want Ok", resp)
	}
	pid := testsupport.ReadKubectlPID(t, cfg)

	if err := client.Send(protocol.Stop); err != nil {
		t.Fatalf("Send Stop: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if testsupport.ProcessAlive(pid) {
		t.Fatalf("kubectl stub %d still alive after stop", pid)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket still present after stop: %v", err)
	}
	if !bytes.Contains([]byte(out.String()), []byte("Forwarding from")) {
		t.Fatalf("child output not captured: %q", out.String())
	}
}

func TestRunReportsUnhealthyWhenChildExits(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFailingKubectl())
	ctx, cancel := context.WithCancel(context.Background())
	done := startDaemon(t, ctx, options(cfg, &syncBuffer{}))
	path := socketPath(t, cfg)

	testsupport.Eventually(t, 5*time.Second, "health to turn Err", func() bool {
		resp, err := ipc.Probe(context.Background(), path)
		return err == nil && resp == protocol.Err
	})

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
}

func TestRunRejectsSecondDaemonForSameEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithForwardingKubectl())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startDaemon(t, ctx, options(cfg, &syncBuffer{}))
	path := socketPath(t, cfg)

	testsupport.Eventually(t, 5*time.Second, "first daemon healthy", func() bool {
		resp, err := ipc.Probe(context.Background(), path)
		return err == nil && resp == protocol.Ok
	})

	err := daemonrun.Run(context.Background(), options(cfg, &syncBuffer{}))
	if !errors.Is(err, ipc.ErrAddrInUse) {
		t.Fatalf("second Run error = %v, want ErrAddrInUse", err)
	}

	resp, err := ipc.Probe(context.Background(), path)
	if err != nil || resp != protocol.Ok {
		t.Fatalf("first daemon disturbed: resp=%s err=%v", resp, err)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
}

func TestRunCancellationTerminatesChildAndRemovesEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithForwardingKubectl())
	ctx, cancel := context.WithCancel(context.Background())
	done := startDaemon(t, ctx, options(cfg, &syncBuffer{}))
	path := socketPath(t, cfg)

	pid := testsupport.ReadKubectlPID(t, cfg)
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if testsupport.ProcessAlive(pid) {
		t.Fatalf("kubectl stub %d still alive after cancellation", pid)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket still present: %v", err)
	}
}

func TestRunFailsWhenKubectlCannotStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Kubectl.Binary = "/nonexistent/kubectl"

	err := daemonrun.Run(context.Background(), options(cfg, &syncBuffer{}))
	if err == nil {
		t.Fatal("expected spawn failure")
	}
	if _, statErr := os.Stat(socketPath(t, cfg)); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("socket left behind after failed start: %v", statErr)
	}
}

func TestRunRejectsInvalidTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithForwardingKubectl())
	opts := options(cfg, &syncBuffer{})
	opts.Target.PortMapping = "99999:80"

	if err := daemonrun.Run(context.Background(), opts); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(socketPath(t, cfg)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket created for invalid target: %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), daemonrun.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}

// A kubectl that takes two seconds to honour SIGTERM.
const slowStopKubectl = `trap 'sleep 2; exit 0' TERM
echo "Forwarding from 127.0.0.1"
while :; do sleep 0.1; done`

func TestDefaultDisconnectBudgetCoversSlowChildShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedKubectl(slowStopKubectl))
	defaults := config.Default()
	cfg.Client.DisconnectAttempts = defaults.Client.DisconnectAttempts
	cfg.Client.DisconnectDelayMS = defaults.Client.DisconnectDelayMS
	cfg.Supervisor.StopTimeoutSeconds = defaults.Supervisor.StopTimeoutSeconds
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default budgets rejected: %v", err)
	}

	done := startDaemon(t, context.Background(), options(cfg, &syncBuffer{}))
	client, err := ipc.Connect(context.Background(), socketPath(t, cfg), connectPolicy(cfg))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	if resp, err := client.Request(protocol.Health); err != nil || resp != protocol.Ok {
		t.Fatalf("Health = %s, %v; want Ok", resp, err)
	}

	if err := client.Send(protocol.Stop); err != nil {
		t.Fatalf("Send Stop: %v", err)
	}
	start := time.Now()
	policy := ipc.RetryPolicy{Attempts: cfg.Client.DisconnectAttempts, Delay: cfg.DisconnectDelay()}
	if err := client.WaitForDisconnect(context.Background(), policy); err != nil {
		t.Fatalf("WaitForDisconnect after %s: %v", time.Since(start), err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("endpoint vanished after %s, before the child finished its SIGTERM handler", elapsed)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
}
