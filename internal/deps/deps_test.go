package deps_test

import (
	"path/filepath"
	"strings"
	"testing"

	"kubeport/internal/config"
	"kubeport/internal/deps"
	"kubeport/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	present := filepath.Join(t.TempDir(), "present")
	testsupport.WriteExecutable(t, present, "exit 0")
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail: %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for blank command: %#v", results[2])
	}
}

func TestRequireNamesMissingKubectl(t *testing.T) {
	err := deps.Require(deps.Kubectl(config.Kubectl{Binary: "/nonexistent/kubectl"}))
	if err == nil {
		t.Fatal("expected error for missing kubectl")
	}
	if !strings.Contains(err.Error(), "kubectl") || !strings.Contains(err.Error(), "/nonexistent/kubectl") {
		t.Fatalf("error %q does not name the binary", err)
	}
}

func TestRequireAcceptsStub(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithForwardingKubectl())
	if err := deps.Require(deps.Kubectl(cfg.Kubectl)); err != nil {
		t.Fatalf("Require: %v", err)
	}
}
