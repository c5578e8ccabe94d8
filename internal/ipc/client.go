package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"kubeport/internal/logging"
	"kubeport/internal/protocol"
)

// Client is one control connection to a daemon.
type Client struct {
	path   string
	conn   net.Conn
	logger *slog.Logger
}

// ClientOption customizes Connect.
type ClientOption func(*Client)

// WithClientLogger routes client diagnostics to logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Connect dials path, retrying with a fixed delay until policy is exhausted.
func Connect(ctx context.Context, path string, policy RetryPolicy, opts ...ClientOption) (*Client, error) {
	c := &Client{path: path, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	var dialer net.Dialer
	attempts := policy.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "unix", path)
		if err == nil {
			c.conn = conn
			return c, nil
		}
		lastErr = err
		c.logger.Debug("connect attempt failed",
			logging.Int("attempt", attempt),
			logging.String(logging.FieldSocket, path),
			logging.Error(err))
		if attempt == attempts {
			break
		}
		if err := sleepContext(ctx, policy.Delay); err != nil {
			return nil, err
		}
	}
	return nil, &ConnectTimeoutError{Path: path, Attempts: attempts, Err: lastErr}
}

// Send writes one request frame.
func (c *Client) Send(req protocol.Request) error {
	if err := protocol.WriteRequest(c.conn, req); err != nil {
		return fmt.Errorf("send %s: %w", req, err)
	}
	return nil
}

// Receive reads one response frame.
func (c *Client) Receive() (protocol.Response, error) {
	resp, err := protocol.ReadResponse(c.conn)
	if err != nil {
		return 0, fmt.Errorf("receive response: %w", err)
	}
	return resp, nil
}

// Request performs one round trip.
func (c *Client) Request(req protocol.Request) (protocol.Response, error) {
	if err := c.Send(req); err != nil {
		return 0, err
	}
	return c.Receive()
}

// WaitForDisconnect polls the client's endpoint until it disappears.
func (c *Client) WaitForDisconnect(ctx context.Context, policy RetryPolicy) error {
	return WaitForDisconnect(ctx, c.path, policy, c.logger)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// WaitForDisconnect succeeds once dialing path fails because the endpoint no
// longer exists. Any other outcome, including a successful connect or a
// refused connection from a listener that is still tearing down, is retried.
func WaitForDisconnect(ctx context.Context, path string, policy RetryPolicy, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	var dialer net.Dialer
	attempts := policy.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "unix", path)
		switch {
		case err == nil:
			_ = conn.Close()
			logger.Debug("endpoint still accepting", logging.Int("attempt", attempt))
		case EndpointGone(err):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, unix.ECONNREFUSED):
			logger.Debug("endpoint still present", logging.Int("attempt", attempt), logging.Error(err))
		default:
			logging.WarnWithContext(logger, "unexpected error while waiting for shutdown", "ipc_disconnect_dial_failed",
				logging.Int("attempt", attempt),
				logging.String(logging.FieldSocket, path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the socket directory"),
				logging.String(logging.FieldImpact, "shutdown cannot be confirmed"))
		}
		if attempt < attempts {
			if err := sleepContext(ctx, policy.Delay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrDisconnectTimeout, path)
}

// Probe performs a single connect plus Health round trip without retries.
func Probe(ctx context.Context, path string) (protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c := &Client{path: path, conn: conn}
	return c.Request(protocol.Health)
}

// EndpointGone reports a dial error proving nothing is bound at the path.
func EndpointGone(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EADDRNOTAVAIL)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
