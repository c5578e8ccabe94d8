package ipc

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"kubeport/internal/logging"
	"kubeport/internal/protocol"
)

// Server owns one bound control endpoint.
type Server struct {
	path     string
	listener *net.UnixListener
	lock     *flock.Flock
	logger   *slog.Logger
	health   func() bool
	poll     time.Duration
	idle     time.Duration

	closeOnce sync.Once
	closeErr  error
}

// ServerOption customizes Listen.
type ServerOption func(*Server)

// WithLogger routes server diagnostics to logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthProbe makes Health answer Err whenever probe reports false.
func WithHealthProbe(probe func() bool) ServerOption {
	return func(s *Server) { s.health = probe }
}

// WithPollInterval sets how long one accept attempt may block.
func WithPollInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithIdleTimeout sets the per-connection read deadline. Zero disables it.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d >= 0 {
			s.idle = d
		}
	}
}

// Listen binds path after making sure no live daemon already serves it.
func Listen(path string, opts ...ServerOption) (*Server, error) {
	s := &Server{
		path:   path,
		logger: logging.NewNop(),
		poll:   DefaultPollInterval,
		idle:   DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "ipc")

	if endpointLive(path) {
		return nil, &ListenError{Path: path, Err: ErrAddrInUse}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &ListenError{Path: path, Err: err}
	}

	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &ListenError{Path: path, Err: err}
	}
	if !locked {
		return nil, &ListenError{Path: path, Err: ErrAddrInUse}
	}

	// The lock proves no other daemon owns the path, so anything left there is
	// from an unclean shutdown.
	if err := os.Remove(path); err == nil {
		logging.WarnWithContext(s.logger, "removed stale socket", "ipc_stale_socket",
			logging.String(logging.FieldSocket, path),
			logging.String(logging.FieldImpact, "previous daemon exited without cleanup"))
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = lock.Unlock()
		return nil, &ListenError{Path: path, Err: err}
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		_ = lock.Unlock()
		return nil, &ListenError{Path: path, Err: err}
	}
	if err := listener.SetDeadline(time.Now().Add(s.poll)); err != nil {
		_ = listener.Close()
		_ = os.Remove(path)
		_ = lock.Unlock()
		return nil, &ListenError{Path: path, Err: errors.Join(ErrNonBlockingUnavailable, err)}
	}

	s.listener = listener
	s.lock = lock
	s.logger.Debug("control socket bound", logging.String(logging.FieldSocket, path))
	return s, nil
}

// Path returns the bound socket path.
func (s *Server) Path() string { return s.path }

// Incoming yields accepted connections until ctx ends or the server closes.
// Accept failures are logged and skipped. Each call starts a new sequence.
func (s *Server) Incoming(ctx context.Context) iter.Seq[net.Conn] {
	return func(yield func(net.Conn) bool) {
		for ctx.Err() == nil {
			if err := s.listener.SetDeadline(time.Now().Add(s.poll)); err != nil {
				return
			}
			conn, err := s.listener.Accept()
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					continue
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "one control connection was dropped"),
					logging.String(logging.FieldErrorHint, "retry the command"))
				time.Sleep(s.poll)
				continue
			}
			if !yield(conn) {
				_ = conn.Close()
				return
			}
		}
	}
}

// Serve handles connections one at a time until a Stop request arrives, in
// which case it returns nil. It returns ctx.Err() when ctx ends first.
func (s *Server) Serve(ctx context.Context) error {
	for conn := range s.Incoming(ctx) {
		if s.handle(ctx, conn) {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return net.ErrClosed
}

// handle runs the request loop for one connection and reports whether Stop
// was received.
func (s *Server) handle(ctx context.Context, conn net.Conn) bool {
	defer conn.Close()
	release := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer release()

	for {
		if s.idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idle))
		}
		req, err := protocol.ReadRequest(conn)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				s.logger.Debug("client disconnected")
			} else {
				logging.WarnWithContext(s.logger, "abandoning control connection", "ipc_bad_frame",
					logging.Error(err),
					logging.String(logging.FieldImpact, "the client's request was not answered"))
			}
			return false
		}

		switch req {
		case protocol.Health:
			resp := protocol.Ok
			if s.health != nil && !s.health() {
				resp = protocol.Err
			}
			s.logger.Debug("health request", logging.String("response", resp.String()))
			if err := protocol.WriteResponse(conn, resp); err != nil {
				logging.WarnWithContext(s.logger, "health response not delivered", "ipc_write_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "the client will treat the daemon as unhealthy"))
				return false
			}
		case protocol.Stop:
			s.logger.Info("stop requested")
			return true
		}
	}
}

// Close releases the listener, the socket path, and the lock. It is safe to
// call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
				logging.String(logging.FieldSocket, s.path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale socket is left until the next start"),
				logging.String(logging.FieldErrorHint, "remove the socket file manually"))
			errs = append(errs, err)
		}
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// endpointLive reports whether something accepts connections at path.
func endpointLive(path string) bool {
	conn, err := net.DialTimeout("unix", path, probeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
