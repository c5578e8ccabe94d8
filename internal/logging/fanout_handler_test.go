package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerDropsNilAndNoop(t *testing.T) {
	if _, ok := newFanoutHandler(nil, NoopHandler{}).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when nothing real is supplied")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, NoopHandler{}); h != inner {
		t.Fatal("expected single real handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(infoHandler, debugHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to be enabled for debug")
	}

	slog.New(h).Debug("debug only message")
	if infoBuf.Len() != 0 {
		t.Fatal("info handler should not receive debug messages")
	}
	if debugBuf.Len() == 0 {
		t.Fatal("debug handler should receive debug messages")
	}
}

func TestTeeLoggerCarriesAttrsToEveryHandler(t *testing.T) {
	var fileBuf, statusBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&fileBuf, nil))
	logger := TeeLogger(base, NewComposeHandler(&statusBuf, slog.LevelInfo)).With(String(FieldService, "web"))

	logger.Info("daemon up")

	if !bytes.Contains(fileBuf.Bytes(), []byte(`"service":"web"`)) {
		t.Fatalf("expected service attr in base output, got %s", fileBuf.String())
	}
	if !bytes.Contains(statusBuf.Bytes(), []byte(`"message":"daemon up service=web"`)) {
		t.Fatalf("expected service attr in status output, got %s", statusBuf.String())
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&buf, nil))
	logger.Info("no base")
	if buf.Len() == 0 {
		t.Fatal("expected output in tee buffer")
	}
}
