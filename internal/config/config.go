package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath names the environment variable that overrides the default
// configuration file location.
const EnvConfigPath = "KUBEPORT_CONFIG"

// Paths contains socket and log locations.
type Paths struct {
	SocketDir string `toml:"socket_dir"`
	SocketExt string `toml:"socket_ext"`
	LogDir    string `toml:"log_dir"`
}

// Kubectl describes how the port-forward child is invoked.
type Kubectl struct {
	Binary     string `toml:"binary"`
	Kubeconfig string `toml:"kubeconfig"`
	Context    string `toml:"context"`
	Namespace  string `toml:"namespace"`
	Address    string `toml:"address"`
}

// Supervisor controls the lifecycle policy of the port-forward child.
type Supervisor struct {
	// Restart is "never" or "on-exit".
	Restart             string `toml:"restart"`
	RestartDelaySeconds int    `toml:"restart_delay_seconds"`
	StopTimeoutSeconds  int    `toml:"stop_timeout_seconds"`
}

// Client holds the retry budgets used by the launcher and stopper.
type Client struct {
	ConnectAttempts    int `toml:"connect_attempts"`
	ConnectDelayMS     int `toml:"connect_delay_ms"`
	DisconnectAttempts int `toml:"disconnect_attempts"`
	DisconnectDelayMS  int `toml:"disconnect_delay_ms"`
}

// Server holds the daemon side control channel timings.
type Server struct {
	PollIntervalMS     int `toml:"poll_interval_ms"`
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`
}

// Logging contains configuration for daemon log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for kubeport.
//
// Configuration sections by subsystem:
//   - Paths: control socket directory and daemon log directory
//   - Kubectl: binary and global flags for the port-forward child
//   - Supervisor: restart policy and stop grace period
//   - Client: connect and disconnect retry budgets
//   - Server: accept poll interval and per-connection idle timeout
//   - Logging: daemon log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Kubectl    Kubectl    `toml:"kubectl"`
	Supervisor Supervisor `toml:"supervisor"`
	Client     Client     `toml:"client"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if err := os.MkdirAll(c.Paths.SocketDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.SocketDir, err)
	}
	return nil
}

// ConnectDelay returns the fixed delay between connect attempts.
func (c *Config) ConnectDelay() time.Duration {
	return time.Duration(c.Client.ConnectDelayMS) * time.Millisecond
}

// DisconnectDelay returns the fixed delay between disconnect probes.
func (c *Config) DisconnectDelay() time.Duration {
	return time.Duration(c.Client.DisconnectDelayMS) * time.Millisecond
}

// PollInterval returns how long one accept attempt may block.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Server.PollIntervalMS) * time.Millisecond
}

// IdleTimeout returns the per-connection read deadline.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.IdleTimeoutSeconds) * time.Second
}

// RestartDelay returns the pause before respawning an exited child.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Supervisor.RestartDelaySeconds) * time.Second
}

// StopTimeout returns the grace period between SIGTERM and SIGKILL.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Supervisor.StopTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
