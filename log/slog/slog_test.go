package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/goliatone/go-swr-cache/swr"
)

func TestSlogLogger_ForwardsLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	handler := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})
	logger := Logger{L: stdslog.New(handler)}

	logger.Debug("debug msg", swr.Fields{"key": "k1"})
	logger.Error("error msg", nil)

	out := buf.String()
	if !strings.Contains(out, "debug msg") || !strings.Contains(out, "key=k1") {
		t.Errorf("debug line missing fields: %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("error level missing: %q", out)
	}
}
