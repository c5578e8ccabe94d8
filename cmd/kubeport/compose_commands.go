package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"kubeport/internal/daemonctl"
)

// serviceFlags are the per-invocation identity and target of one compose
// service.
type serviceFlags struct {
	project     string
	resource    string
	portMapping string
}

func newComposeCommand(ctx *commandContext) *cobra.Command {
	flags := &serviceFlags{}
	composeCmd := &cobra.Command{
		Use:         "compose",
		Short:       "Docker Compose provider commands",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	composeCmd.PersistentFlags().StringVarP(&flags.project, "project-name", "p", "", "Compose project name")
	_ = composeCmd.MarkPersistentFlagRequired("project-name")
	composeCmd.SetGlobalNormalizationFunc(projectAlias)

	composeCmd.AddCommand(newComposeUpCommand(ctx, flags))
	composeCmd.AddCommand(newComposeDownCommand(ctx, flags))
	return composeCmd
}

func newComposeUpCommand(ctx *commandContext, flags *serviceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up SERVICE",
		Short: "Start a port-forward daemon for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runService(cmd, flags, args[0], daemonctl.Up)
		},
	}
	addTargetFlags(cmd, flags)
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("port-mapping")
	return cmd
}

func newComposeDownCommand(ctx *commandContext, flags *serviceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down SERVICE",
		Short: "Stop the port-forward daemon for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runService(cmd, flags, args[0], daemonctl.Down)
		},
	}
	// Compose passes the same options to down as to up; they are accepted
	// and ignored.
	addTargetFlags(cmd, flags)
	return cmd
}

func addTargetFlags(cmd *cobra.Command, flags *serviceFlags) {
	cmd.Flags().StringVarP(&flags.resource, "resource", "r", "", "Kubernetes resource to forward, e.g. svc/api or deployment/web")
	cmd.Flags().StringVarP(&flags.portMapping, "port-mapping", "m", "", "Port mapping passed to kubectl, e.g. 8080:80")
}

func projectAlias(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "project" {
		name = "project-name"
	}
	return pflag.NormalizedName(name)
}
