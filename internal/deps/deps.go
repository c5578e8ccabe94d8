// Package deps checks the external binaries kubeport shells out to.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"kubeport/internal/config"
)

// Requirement defines an external binary kubeport relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	// Path is the resolved executable when Available.
	Path      string
	Available bool
	Detail    string
}

// Kubectl describes the configured kubectl binary.
func Kubectl(cfg config.Kubectl) Requirement {
	return Requirement{
		Name:        "kubectl",
		Command:     cfg.Binary,
		Description: "runs the supervised port-forward",
	}
}

// Check resolves one requirement on PATH.
func Check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

// Require returns an error listing every unavailable requirement.
func Require(requirements ...Requirement) error {
	var errs []error
	for _, status := range CheckBinaries(requirements) {
		if !status.Available {
			errs = append(errs, fmt.Errorf("%s: %s", status.Name, status.Detail))
		}
	}
	return errors.Join(errs...)
}
