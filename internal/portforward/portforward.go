// Package portforward describes the kubectl port-forward child a daemon
// supervises: which resource it targets, which ports it maps, and the exact
// argv used to start it.
package portforward

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"kubeport/internal/config"
)

// Target is what one daemon forwards.
type Target struct {
	// Resource is a kubectl locator such as "deployment/api" or a bare pod name.
	Resource string
	// PortMapping is "[local]:remote" or a single port.
	PortMapping string
}

// Validate checks the target against kubectl's naming and port rules.
func (t Target) Validate() error {
	return errors.Join(validateResource(t.Resource), validateMapping(t.PortMapping))
}

func validateResource(resource string) error {
	if resource == "" {
		return errors.New("resource must not be empty")
	}
	kind, name, hasKind := strings.Cut(resource, "/")
	if !hasKind {
		name = kind
	} else {
		if msgs := validation.IsDNS1123Subdomain(kind); len(msgs) > 0 {
			return fmt.Errorf("resource kind %q: %s", kind, strings.Join(msgs, "; "))
		}
	}
	if msgs := validation.IsDNS1123Subdomain(name); len(msgs) > 0 {
		return fmt.Errorf("resource name %q: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}

func validateMapping(mapping string) error {
	if mapping == "" {
		return errors.New("port mapping must not be empty")
	}
	local, remote, hasLocal := strings.Cut(mapping, ":")
	if !hasLocal {
		local, remote = "", local
	}
	if local != "" {
		port, err := strconv.Atoi(local)
		if err != nil {
			return fmt.Errorf("local port %q is not a number", local)
		}
		if msgs := validation.IsValidPortNum(port); len(msgs) > 0 {
			return fmt.Errorf("local port %d: %s", port, strings.Join(msgs, "; "))
		}
	}
	if port, err := strconv.Atoi(remote); err == nil {
		if msgs := validation.IsValidPortNum(port); len(msgs) > 0 {
			return fmt.Errorf("remote port %d: %s", port, strings.Join(msgs, "; "))
		}
		return nil
	}
	if msgs := validation.IsValidPortName(remote); len(msgs) > 0 {
		return fmt.Errorf("remote port %q: %s", remote, strings.Join(msgs, "; "))
	}
	return nil
}

// LocalPort returns the local side of the mapping, or "" when kubectl picks
// a random port. A single-port mapping uses the same port locally.
func (t Target) LocalPort() string {
	local, _, _ := strings.Cut(t.PortMapping, ":")
	return local
}

// Command returns the binary and argv for the port-forward child. Global
// kubectl flags come first; the resource and the mapping are always the last
// two arguments.
func Command(k config.Kubectl, t Target) (string, []string) {
	args := []string{"port-forward"}
	if k.Kubeconfig != "" {
		args = append(args, "--kubeconfig", k.Kubeconfig)
	}
	if k.Context != "" {
		args = append(args, "--context", k.Context)
	}
	if k.Namespace != "" {
		args = append(args, "--namespace", k.Namespace)
	}
	if k.Address != "" {
		args = append(args, "--address", k.Address)
	}
	args = append(args, t.Resource, t.PortMapping)
	return k.Binary, args
}
