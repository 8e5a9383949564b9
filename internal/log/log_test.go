package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn")
	Error("shown error", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected DEBUG/INFO to be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") {
		t.Errorf("missing WARN line:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] shown error err=boom") {
		t.Errorf("missing ERROR line:\n%s", out)
	}
}

func TestKeyValueFormatting(t *testing.T) {
	buf := capture(t, LevelDebug)

	Info("refresh done", "events", 3, "title", "Daily standup", "dangling")

	out := buf.String()
	if !strings.Contains(out, `events=3 title="Daily standup"`) {
		t.Errorf("unexpected kv formatting: %s", out)
	}
	if strings.Contains(out, "dangling") {
		t.Errorf("odd trailing key should be ignored: %s", out)
	}
}
