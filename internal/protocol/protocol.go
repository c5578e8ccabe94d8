package protocol

import (
	"errors"
	"fmt"
	"io"
)

// FrameSize is the length of every encoded frame.
const FrameSize = 4

// FrameMark delimits both ends of a frame (ASCII record separator).
const FrameMark byte = 0x1e

// Channel tags. Both directions use 1; see the package documentation.
const (
	RequestTag  byte = 1
	ResponseTag byte = 1
)

// Frame is one encoded control unit.
type Frame [FrameSize]byte

// Request is a client to daemon command.
type Request byte

const (
	Health Request = 1
	Stop   Request = 2
)

// Response is a daemon to client reply.
type Response byte

const (
	Ok  Response = 1
	Err Response = 2
)

// ErrEOF reports that the stream ended before a full frame arrived.
var ErrEOF = errors.New("protocol: stream ended before a full frame")

// UnknownFrameError reports four bytes that do not form a registered frame.
type UnknownFrameError struct {
	Frame Frame
}

func (e *UnknownFrameError) Error() string {
	return fmt.Sprintf("protocol: unknown frame % x", e.Frame[:])
}

func (r Request) String() string {
	switch r {
	case Health:
		return "health"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("request(%d)", byte(r))
	}
}

func (r Response) String() string {
	switch r {
	case Ok:
		return "ok"
	case Err:
		return "err"
	default:
		return fmt.Sprintf("response(%d)", byte(r))
	}
}

// Frame encodes the request.
func (r Request) Frame() Frame {
	return Frame{FrameMark, RequestTag, byte(r), FrameMark}
}

// Frame encodes the response.
func (r Response) Frame() Frame {
	return Frame{FrameMark, ResponseTag, byte(r), FrameMark}
}

// ParseRequest decodes a request frame.
func ParseRequest(f Frame) (Request, error) {
	if !delimited(f) || f[1] != RequestTag {
		return 0, &UnknownFrameError{Frame: f}
	}
	switch req := Request(f[2]); req {
	case Health, Stop:
		return req, nil
	default:
		return 0, &UnknownFrameError{Frame: f}
	}
}

// ParseResponse decodes a response frame.
func ParseResponse(f Frame) (Response, error) {
	if !delimited(f) || f[1] != ResponseTag {
		return 0, &UnknownFrameError{Frame: f}
	}
	switch resp := Response(f[2]); resp {
	case Ok, Err:
		return resp, nil
	default:
		return 0, &UnknownFrameError{Frame: f}
	}
}

func delimited(f Frame) bool {
	return f[0] == FrameMark && f[3] == FrameMark
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var f Frame
	if _, err := io.ReadFull(r, f[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return f, fmt.Errorf("%w: %w", ErrEOF, err)
		}
		return f, err
	}
	return f, nil
}

// ReadRequest reads and decodes one request frame.
func ReadRequest(r io.Reader) (Request, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	return ParseRequest(f)
}

// ReadResponse reads and decodes one response frame.
func ReadResponse(r io.Reader) (Response, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	return ParseResponse(f)
}

// WriteRequest writes the encoded request to w.
func WriteRequest(w io.Writer, req Request) error {
	f := req.Frame()
	_, err := w.Write(f[:])
	return err
}

// WriteResponse writes the encoded response to w.
func WriteResponse(w io.Writer, resp Response) error {
	f := resp.Frame()
	_, err := w.Write(f[:])
	return err
}
