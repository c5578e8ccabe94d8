package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"kubeport/internal/config"
	"kubeport/internal/daemonctl"
	"kubeport/internal/logging"
	"kubeport/internal/portforward"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if level := c.logLevel(); level != "" {
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				c.configErr = fmt.Errorf("--log-level: %w", err)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
}

// statusLogger writes compose status lines. Debug lines are only emitted when
// --log-level debug is given.
func (c *commandContext) statusLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.logLevel() == "debug" {
		level = slog.LevelDebug
	}
	return logging.NewComposeLogger(w, level)
}

// runService loads the configuration, tees status lines into the service
// log, and runs fn for one compose service. Any error is emitted as an error
// status line and returned as already reported.
func (c *commandContext) runService(cmd *cobra.Command, flags *serviceFlags, service string, fn func(context.Context, daemonctl.Options) error) error {
	status := c.statusLogger(cmd.OutOrStdout())
	cfg, err := c.ensureConfig()
	if err != nil {
		return reportError(status, err)
	}
	status = withServiceLog(status, cfg, flags.project, service)
	if err := fn(cmd.Context(), c.daemonOptions(cmd, flags, service, status)); err != nil {
		return reportError(status, err)
	}
	return nil
}

// withServiceLog copies status records into the service's daemon log so the
// log tells the whole story of each launch and stop.
func withServiceLog(status *slog.Logger, cfg *config.Config, project, service string) *slog.Logger {
	logPath := daemonctl.LogPath(cfg, project, service)
	fileLogger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		status.Debug("service log unavailable", logging.Error(err))
		return status
	}
	return logging.TeeLogger(status, logging.NewComponentLogger(fileLogger, "launcher").Handler())
}

func reportError(status *slog.Logger, err error) error {
	status.Error(err.Error())
	return &reportedError{err: err}
}

// daemonOptions builds the daemonctl view of one compose service.
func (c *commandContext) daemonOptions(cmd *cobra.Command, flags *serviceFlags, service string, status *slog.Logger) daemonctl.Options {
	return daemonctl.Options{
		Config:     c.config,
		ConfigPath: c.configPath,
		LogLevel:   c.logLevel(),
		Project:    flags.project,
		Service:    service,
		Target:     portforward.Target{Resource: flags.resource, PortMapping: flags.portMapping},
		Status:     status,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
