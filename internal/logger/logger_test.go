package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestForGameTagsLines(t *testing.T) {
	buf := captureGlobal(t)
	l := ForGame("game-9")
	l.Info().Msg("Resolving turn")

	if got := decodeLine(t, buf)["gameId"]; got != "game-9" {
		t.Errorf("expected gameId=game-9, got %v", got)
	}
}

func TestForRequest(t *testing.T) {
	buf := captureGlobal(t)
	ctx := WithRequestID(context.Background(), "abcd1234")
	l := ForRequest(ctx)
	l.Info().Msg("hello")

	if got := decodeLine(t, buf)["requestId"]; got != "abcd1234" {
		t.Errorf("expected requestId, got %v", got)
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("expected empty request id on a bare context")
	}
}

func TestLogBodyTruncates(t *testing.T) {
	buf := captureGlobal(t)
	LogRequest(log.Logger, []byte(strings.Repeat("a", maxLoggedBody+50)))

	m := decodeLine(t, buf)
	if m["truncated"] != true {
		t.Errorf("expected truncated flag, got %v", m)
	}
	if body, _ := m["request_body"].(string); len(body) != maxLoggedBody {
		t.Errorf("expected %d bytes logged, got %d", maxLoggedBody, len(body))
	}

	buf.Reset()
	LogResponse(log.Logger, nil)
	if buf.Len() != 0 {
		t.Errorf("empty body should not log, got %q", buf.String())
	}
}

func TestPadCaller(t *testing.T) {
	got := padCaller(0, "/src/internal/service/turn_service.go", 42)
	if len(got) != callerWidth || !strings.HasPrefix(got, "turn_service.go:42") {
		t.Errorf("unexpected caller %q", got)
	}
	long := padCaller(0, "/x/"+strings.Repeat("y", 40)+".go", 7)
	if len(long) != callerWidth || !strings.HasSuffix(long, ".go:7") {
		t.Errorf("unexpected long caller %q", long)
	}
}

func TestNewRequestID(t *testing.T) {
	if id := NewRequestID(); len(id) != 8 {
		t.Errorf("expected 8 chars, got %q", id)
	}
}
