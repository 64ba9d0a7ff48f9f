package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfigureInvalidLevel(t *testing.T) {
	l := Logger()
	if err := l.Configure("nope", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	l := Logger()
	if err := l.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestWithComponentField(t *testing.T) {
	l := Logger()
	if err := l.Configure("info", "json", "stdout", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}

	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithComponent("dispatcher").Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"dispatcher"`) {
		t.Fatalf("expected component field in output, got %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("expected message field in output, got %s", out)
	}
}
