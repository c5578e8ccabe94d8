package daemonctl

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"kubeport/internal/ipc"
	"kubeport/internal/protocol"
)

// DaemonState is the observed condition of one endpoint.
type DaemonState string

const (
	// StateHealthy means the daemon answered Health with Ok.
	StateHealthy DaemonState = "healthy"
	// StateUnhealthy means the daemon answered but its port-forward is down.
	StateUnhealthy DaemonState = "unhealthy"
	// StateStale means a socket file exists but nothing answers on it.
	StateStale DaemonState = "stale"
)

// Entry describes one endpoint found under the socket directory.
type Entry struct {
	Project string      `json:"project"`
	Service string      `json:"service"`
	Socket  string      `json:"socket"`
	State   DaemonState `json:"state"`
	Detail  string      `json:"detail,omitempty"`
}

// List finds every <dir>/<project>/<service>.<ext> socket and probes it.
// Entries are sorted by project, then service.
func List(ctx context.Context, dir, ext string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*", "*."+ext))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || info.Mode().Type() != fs.ModeSocket {
			continue
		}
		project, service, err := ipc.ParseSocketPath(dir, path, ext)
		if err != nil {
			continue
		}
		entry := Entry{Project: project, Service: service, Socket: path}
		resp, err := ipc.Probe(ctx, path)
		switch {
		case err != nil:
			entry.State = StateStale
			entry.Detail = err.Error()
		case resp == protocol.Ok:
			entry.State = StateHealthy
		default:
			entry.State = StateUnhealthy
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.Project, b.Project), cmp.Compare(a.Service, b.Service))
	})
	return entries, nil
}
