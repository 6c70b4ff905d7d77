package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestSetLogLevel(t *testing.T) {
	tc := []struct {
		name  string
		level string
		want  log.Level
	}{
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "upper case", level: "WARN", want: log.WarnLevel},
		{name: "padded", level: "  error ", want: log.ErrorLevel},
		{name: "unknown falls back to info", level: "chatty", want: log.InfoLevel},
		{name: "empty falls back to info", level: "", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLogger(&bytes.Buffer{})
			SetLogLevel(l, tt.level)
			if got := l.GetLevel(); got != tt.want {
				t.Errorf("SetLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	WithLogger(l, "component", "test").Info("hello")

	if !strings.Contains(buf.String(), "component=test") {
		t.Errorf("expected child logger fields in output, got %q", buf.String())
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a valid uuid, got %q: %v", a, err)
	}
}
