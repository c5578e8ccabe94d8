package ipc

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAddrInUse reports a live daemon already serving the endpoint.
	ErrAddrInUse = errors.New("ipc: address in use")
	// ErrNonBlockingUnavailable reports a listener without accept deadlines.
	ErrNonBlockingUnavailable = errors.New("ipc: non-blocking accept unavailable")
	// ErrConnectTimeout reports exhausted connect attempts.
	ErrConnectTimeout = errors.New("ipc: connect attempts exhausted")
	// ErrDisconnectTimeout reports an endpoint that never disappeared.
	ErrDisconnectTimeout = errors.New("ipc: endpoint still present after disconnect wait")
)

// ListenError wraps a failure to prepare or bind the endpoint.
type ListenError struct {
	Path string
	Err  error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("ipc: listen on %s: %v", e.Path, e.Err)
}

func (e *ListenError) Unwrap() error { return e.Err }

// ConnectTimeoutError carries the last dial failure once attempts run out.
type ConnectTimeoutError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("ipc: connect to %s failed after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *ConnectTimeoutError) Unwrap() []error { return []error{ErrConnectTimeout, e.Err} }

// RetryPolicy is a fixed-delay bounded retry budget.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var (
	// DefaultConnectPolicy tolerates a daemon binding a few seconds late.
	DefaultConnectPolicy = RetryPolicy{Attempts: 15, Delay: 500 * time.Millisecond}
	// DefaultDisconnectPolicy outlasts a daemon that needs the default five
	// second stop timeout to reap its child.
	DefaultDisconnectPolicy = RetryPolicy{Attempts: 70, Delay: 100 * time.Millisecond}
)

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

const (
	// DefaultPollInterval bounds one accept attempt.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultIdleTimeout bounds the wait for the next frame on a connection.
	DefaultIdleTimeout = 30 * time.Second

	lockSuffix   = ".lock"
	probeTimeout = 250 * time.Millisecond
)
