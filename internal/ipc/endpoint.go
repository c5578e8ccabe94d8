package ipc

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrEmptyName rejects an empty owner or resource.
	ErrEmptyName = errors.New("ipc: endpoint names must not be empty")
	// ErrPathTooLong reports a socket path that does not fit in sun_path.
	ErrPathTooLong = errors.New("ipc: socket path exceeds the unix socket limit")
)

// MaxSocketPathLen is the longest usable unix socket path on this platform.
var MaxSocketPathLen = len(unix.RawSockaddrUnix{}.Path) - 1

// EscapeName maps an arbitrary name onto a single path segment. Distinct names
// always map to distinct segments and the result never starts with a dot.
func EscapeName(name string) string {
	escaped := url.PathEscape(name)
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped
}

// UnescapeName inverts EscapeName.
func UnescapeName(segment string) (string, error) {
	return url.PathUnescape(segment)
}

// SocketPath returns <dir>/<owner>/<resource>.<ext> with both names escaped.
func SocketPath(dir, owner, resource, ext string) (string, error) {
	if owner == "" || resource == "" {
		return "", ErrEmptyName
	}
	path := filepath.Join(dir, EscapeName(owner), EscapeName(resource)+"."+ext)
	if len(path) > MaxSocketPathLen {
		return "", fmt.Errorf("%w: %s (%d > %d bytes)", ErrPathTooLong, path, len(path), MaxSocketPathLen)
	}
	return path, nil
}

// ParseSocketPath recovers the owner and resource from a path produced by
// SocketPath with the same dir and ext.
func ParseSocketPath(dir, path, ext string) (owner, resource string, err error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", "", err
	}
	ownerSeg, file, ok := strings.Cut(filepath.ToSlash(rel), "/")
	if !ok || strings.Contains(file, "/") {
		return "", "", fmt.Errorf("ipc: %s is not a socket path under %s", path, dir)
	}
	resourceSeg, ok := strings.CutSuffix(file, "."+ext)
	if !ok || resourceSeg == "" {
		return "", "", fmt.Errorf("ipc: %s does not end in .%s", path, ext)
	}
	if owner, err = UnescapeName(ownerSeg); err != nil {
		return "", "", err
	}
	if resource, err = UnescapeName(resourceSeg); err != nil {
		return "", "", err
	}
	return owner, resource, nil
}
