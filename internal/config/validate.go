package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSupervisor(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.ContainsAny(c.Paths.SocketExt, "/.") {
		return fmt.Errorf("paths.socket_ext must be a bare extension, got %q", c.Paths.SocketExt)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	switch c.Supervisor.Restart {
	case RestartNever, RestartOnExit:
	default:
		return fmt.Errorf("supervisor.restart must be %q or %q, got %q", RestartNever, RestartOnExit, c.Supervisor.Restart)
	}
	if c.Supervisor.RestartDelaySeconds < 0 {
		return errors.New("supervisor.restart_delay_seconds must be zero or positive")
	}
	if c.Supervisor.Restart == RestartOnExit && c.Supervisor.RestartDelaySeconds == 0 {
		return errors.New("supervisor.restart_delay_seconds must be positive when restart is on-exit")
	}
	if c.Supervisor.StopTimeoutSeconds <= 0 {
		return errors.New("supervisor.stop_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Client.ConnectAttempts <= 0 {
		return errors.New("client.connect_attempts must be positive")
	}
	if c.Client.DisconnectAttempts <= 0 {
		return errors.New("client.disconnect_attempts must be positive")
	}
	if c.Client.ConnectDelayMS < 0 || c.Client.DisconnectDelayMS < 0 {
		return errors.New("client delays must be zero or positive")
	}
	// The daemon removes its endpoint only after kubectl is reaped, which can
	// take the whole stop timeout.
	if wait := time.Duration(c.Client.DisconnectAttempts) * c.DisconnectDelay(); wait <= c.StopTimeout() {
		return fmt.Errorf("client disconnect budget (%d x %dms = %s) must exceed supervisor.stop_timeout_seconds (%s)",
			c.Client.DisconnectAttempts, c.Client.DisconnectDelayMS, wait, c.StopTimeout())
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.PollIntervalMS <= 0 {
		return errors.New("server.poll_interval_ms must be positive")
	}
	if c.Server.IdleTimeoutSeconds < 0 {
		return errors.New("server.idle_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
