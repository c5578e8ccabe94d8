package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeKubectl()
	c.normalizeSupervisor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.SocketDir) == "" {
		c.Paths.SocketDir = defaultSocketDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.SocketDir, err = expandPath(strings.TrimSpace(c.Paths.SocketDir)); err != nil {
		return fmt.Errorf("paths.socket_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.SocketExt = strings.TrimPrefix(strings.TrimSpace(c.Paths.SocketExt), ".")
	if c.Paths.SocketExt == "" {
		c.Paths.SocketExt = defaultSocketExt
	}
	return nil
}

func (c *Config) normalizeKubectl() {
	c.Kubectl.Binary = strings.TrimSpace(c.Kubectl.Binary)
	if c.Kubectl.Binary == "" {
		c.Kubectl.Binary = defaultKubectlBinary
	}
	c.Kubectl.Kubeconfig = strings.TrimSpace(c.Kubectl.Kubeconfig)
	if c.Kubectl.Kubeconfig != "" {
		if expanded, err := expandPath(c.Kubectl.Kubeconfig); err == nil {
			c.Kubectl.Kubeconfig = expanded
		}
	}
	c.Kubectl.Context = strings.TrimSpace(c.Kubectl.Context)
	c.Kubectl.Namespace = strings.TrimSpace(c.Kubectl.Namespace)
	c.Kubectl.Address = strings.TrimSpace(c.Kubectl.Address)
}

func (c *Config) normalizeSupervisor() {
	c.Supervisor.Restart = strings.ToLower(strings.TrimSpace(c.Supervisor.Restart))
	if c.Supervisor.Restart == "" {
		c.Supervisor.Restart = defaultRestart
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
