package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"kubeport/internal/daemonctl"
	"kubeport/internal/daemonrun"
	"kubeport/internal/logging"
)

func addStepFlags(cmd *cobra.Command, flags *serviceFlags) {
	cmd.Flags().StringVarP(&flags.project, "project-name", "p", "", "Compose project name")
	addTargetFlags(cmd, flags)
	for _, name := range []string{"project-name", "resource", "port-mapping"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

// newDetachCommand is the intermediate step of compose up. It runs in the
// new session created by the launcher, starts the daemon step and exits.
func newDetachCommand(ctx *commandContext) *cobra.Command {
	flags := &serviceFlags{}
	cmd := &cobra.Command{
		Use:         daemonctl.StepDetach + " SERVICE",
		Short:       "Start the port-forward daemon in the background (internal)",
		Hidden:      true,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runService(cmd, flags, args[0], func(_ context.Context, opts daemonctl.Options) error {
				pid, err := daemonctl.Detach(opts)
				if err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
				opts.Status.Debug("daemon started", logging.Int(logging.FieldPID, pid))
				return nil
			})
		},
	}
	addStepFlags(cmd, flags)
	return cmd
}

// newDaemonCommand runs the daemon itself. Its stdout and stderr are the
// service log file.
func newDaemonCommand(ctx *commandContext) *cobra.Command {
	flags := &serviceFlags{}
	cmd := &cobra.Command{
		Use:         daemonctl.StepDaemon + " SERVICE",
		Short:       "Run the port-forward daemon (internal)",
		Hidden:      true,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			unix.Umask(0o022)
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := ctx.daemonOptions(cmd, flags, args[0], nil)
			return daemonrun.Run(cmd.Context(), daemonrun.Options{
				Config:  cfg,
				Project: opts.Project,
				Service: opts.Service,
				Target:  opts.Target,
				Output:  cmd.ErrOrStderr(),
			})
		},
	}
	addStepFlags(cmd, flags)
	return cmd
}
