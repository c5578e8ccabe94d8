package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"kubeport/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvConfigPath, "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantResolved := filepath.Join(tempHome, ".config", "kubeport", "config.toml")
	if resolved != wantResolved {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, wantResolved)
	}

	wantLogDir := filepath.Join(tempHome, ".local", "state", "kubeport", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.SocketDir != "/tmp" {
		t.Fatalf("unexpected socket dir: %q", cfg.Paths.SocketDir)
	}
	if cfg.Paths.SocketExt != "sock" {
		t.Fatalf("unexpected socket ext: %q", cfg.Paths.SocketExt)
	}
	if cfg.Kubectl.Binary != "kubectl" {
		t.Fatalf("unexpected kubectl binary: %q", cfg.Kubectl.Binary)
	}
	if cfg.Supervisor.Restart != config.RestartNever {
		t.Fatalf("expected restart policy never, got %q", cfg.Supervisor.Restart)
	}
	if cfg.Client.ConnectAttempts != 15 || cfg.ConnectDelay().Milliseconds() != 500 {
		t.Fatalf("unexpected connect budget: %d x %s", cfg.Client.ConnectAttempts, cfg.ConnectDelay())
	}
	if cfg.Client.DisconnectAttempts != 70 || cfg.DisconnectDelay().Milliseconds() != 100 {
		t.Fatalf("unexpected disconnect budget: %d x %s", cfg.Client.DisconnectAttempts, cfg.DisconnectDelay())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "kubeport.toml")

	type payload struct {
		Paths struct {
			SocketDir string `toml:"socket_dir"`
			SocketExt string `toml:"socket_ext"`
		} `toml:"paths"`
		Kubectl struct {
			Context   string `toml:"context"`
			Namespace string `toml:"namespace"`
		} `toml:"kubectl"`
		Supervisor struct {
			Restart string `toml:"restart"`
		} `toml:"supervisor"`
	}
	custom := payload{}
	custom.Paths.SocketDir = filepath.Join(tempDir, "sockets")
	custom.Paths.SocketExt = ".ctl"
	custom.Kubectl.Context = " kind-dev "
	custom.Kubectl.Namespace = "web"
	custom.Supervisor.Restart = "ON-EXIT"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.SocketDir != custom.Paths.SocketDir {
		t.Fatalf("unexpected socket dir: %q", cfg.Paths.SocketDir)
	}
	if cfg.Paths.SocketExt != "ctl" {
		t.Fatalf("expected leading dot trimmed from socket ext, got %q", cfg.Paths.SocketExt)
	}
	if cfg.Kubectl.Context != "kind-dev" {
		t.Fatalf("expected trimmed context, got %q", cfg.Kubectl.Context)
	}
	if cfg.Supervisor.Restart != config.RestartOnExit {
		t.Fatalf("expected restart policy on-exit, got %q", cfg.Supervisor.Restart)
	}
	if cfg.Client.ConnectAttempts != config.Default().Client.ConnectAttempts {
		t.Fatalf("expected unset sections to keep defaults, got %d", cfg.Client.ConnectAttempts)
	}
}

func TestLoadHonoursEnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(configPath, []byte("[kubectl]\nbinary = \"/opt/bin/kubectl\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvConfigPath, configPath)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected env override to be used, got %q", resolved)
	}
	if cfg.Kubectl.Binary != "/opt/bin/kubectl" {
		t.Fatalf("unexpected kubectl binary: %q", cfg.Kubectl.Binary)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"restart policy":    "[supervisor]\nrestart = \"always\"\n",
		"connect budget":    "[client]\nconnect_attempts = 0\n",
		"log format":        "[logging]\nformat = \"xml\"\n",
		"unknown section":   "[tmdb]\napi_key = \"x\"\n",
		"socket ext":        "[paths]\nsocket_ext = \"a/b\"\n",
		"disconnect budget": "[client]\ndisconnect_attempts = 10\ndisconnect_delay_ms = 100\n",
		"restart delay":     "[supervisor]\nrestart = \"on-exit\"\nrestart_delay_seconds = 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(configPath); err == nil {
				t.Fatalf("expected Load to reject %s", name)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[supervisor]") {
		t.Fatalf("sample config missing supervisor section:\n%s", data)
	}

	t.Setenv("HOME", t.TempDir())
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Server.PollIntervalMS != config.Default().Server.PollIntervalMS {
		t.Fatalf("sample config drifted from defaults: poll_interval_ms=%d", cfg.Server.PollIntervalMS)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketDir = filepath.Join(base, "run")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.SocketDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}
