package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Status line kinds understood by the compose host. Debug lines appear only
// when the logger level admits Debug records. SetEnv is part of the host
// contract and is never produced.
const (
	StatusDebug  = "debug"
	StatusInfo   = "info"
	StatusError  = "error"
	StatusSetEnv = "setenv"
)

// StatusLine is one record of the compose status stream.
type StatusLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Attributes that only make sense in the daemon log are left out of status
// messages.
var composeHiddenKeys = map[string]struct{}{
	FieldComponent: {},
	FieldEventType: {},
	FieldImpact:    {},
	FieldRunID:     {},
}

type composeHandler struct {
	mu     *sync.Mutex
	enc    *json.Encoder
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewComposeHandler returns a handler that renders every record as a single
// {"type": ..., "message": ...} JSON line. Warn and Error records become
// "error" lines; attributes are appended to the message as key=value pairs.
func NewComposeHandler(w io.Writer, level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &composeHandler{mu: &sync.Mutex{}, enc: enc, level: level}
}

// NewComposeLogger is shorthand for a logger on NewComposeHandler.
func NewComposeLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewComposeHandler(w, level))
}

func (h *composeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *composeHandler) Handle(_ context.Context, record slog.Record) error {
	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})

	var b strings.Builder
	b.WriteString(strings.TrimSpace(record.Message))
	for _, kv := range kvs {
		if _, hidden := composeHiddenKeys[kv.key]; hidden || kv.key == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv.key)
		b.WriteByte('=')
		b.WriteString(formatValue(kv.value))
	}

	line := StatusLine{Type: statusType(record.Level), Message: b.String()}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(line)
}

func (h *composeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *composeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func statusType(level slog.Level) string {
	switch {
	case level >= slog.LevelWarn:
		return StatusError
	case level >= slog.LevelInfo:
		return StatusInfo
	default:
		return StatusDebug
	}
}
