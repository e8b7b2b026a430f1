package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	log := slog.New(h)

	log.Info("session invalidated", "reason", "logout", "count", 3)

	line := buf.String()
	if !strings.Contains(line, "lvl=[INFO]") {
		t.Fatalf("missing level tag: %q", line)
	}
	if !strings.Contains(line, `msg="session invalidated"`) {
		t.Fatalf("message not quoted: %q", line)
	}
	if !strings.Contains(line, "reason=logout") || !strings.Contains(line, "count=3") {
		t.Fatalf("attrs missing: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line not newline terminated")
	}
}

func TestPrettyHandler_GroupsAndWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newPrettyHandler(&buf, nil, false)

	slog.New(h).With("component", "session").Warn("rejected")
	if line := buf.String(); !strings.Contains(line, "component=session") {
		t.Fatalf("WithAttrs attr missing: %q", line)
	}

	buf.Reset()
	slog.New(h).WithGroup("refresh").Warn("rejected", "code", "REFRESH_TOKEN_REUSED")
	if line := buf.String(); !strings.Contains(line, "refresh.code=REFRESH_TOKEN_REUSED") {
		t.Fatalf("group prefix missing: %q", line)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error must pass at warn level")
	}
}
