package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"

	"kubeport/internal/config"
)

const kubectlPIDName = "kubectl.pid"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test and
// retry budgets short enough for unit tests. Sockets live in a short directory
// under the system temp root so that paths stay within the unix socket limit.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SocketDir = ShortTempDir(t)
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "console"
	cfgVal.Logging.Level = "debug"
	cfgVal.Client.ConnectAttempts = 10
	cfgVal.Client.ConnectDelayMS = 100
	cfgVal.Client.DisconnectAttempts = 50
	cfgVal.Client.DisconnectDelayMS = 100
	cfgVal.Server.PollIntervalMS = 20
	cfgVal.Server.IdleTimeoutSeconds = 5
	cfgVal.Supervisor.RestartDelaySeconds = 0
	cfgVal.Supervisor.StopTimeoutSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStubbedKubectl writes script as an executable and points
// kubectl.binary at it.
func WithStubbedKubectl(script string) ConfigOption {
	return func(b *configBuilder) {
		target := filepath.Join(b.baseDir, "bin", "kubectl")
		WriteExecutable(b.t, target, script)
		b.cfg.Kubectl.Binary = target
	}
}

// WithForwardingKubectl installs a kubectl stub that records its pid in
// KubectlPIDFile and then blocks like a healthy port-forward.
func WithForwardingKubectl() ConfigOption {
	return func(b *configBuilder) {
		pidFile := filepath.Join(b.baseDir, kubectlPIDName)
		WithStubbedKubectl(fmt.Sprintf("echo $$ > %q\necho \"Forwarding from 127.0.0.1\"\nexec sleep 600", pidFile))(b)
	}
}

// WithFailingKubectl installs a kubectl stub that exits at once with an error.
func WithFailingKubectl() ConfigOption {
	return WithStubbedKubectl("echo 'error: services \"missing\" not found' >&2\nexit 1")
}

// KubectlPIDFile is where WithForwardingKubectl stubs record their pid.
func KubectlPIDFile(cfg *config.Config) string {
	return filepath.Join(BaseDir(cfg), kubectlPIDName)
}

// ReadKubectlPID waits for a forwarding stub to record its pid and returns it.
func ReadKubectlPID(t testing.TB, cfg *config.Config) int {
	t.Helper()
	var pid int
	Eventually(t, 5*time.Second, "kubectl stub pid", func() bool {
		data, err := os.ReadFile(KubectlPIDFile(cfg))
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil && pid > 0
	})
	return pid
}

// ProcessAlive reports whether pid still exists.
func ProcessAlive(pid int) bool {
	return unix.Kill(pid, 0) != unix.ESRCH
}

// WriteConfigFile persists cfg as TOML so child processes can load it.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(filepath.Dir(cfg.Paths.LogDir), "kubeport.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
