package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"todosync/internal/logging"
)

func TestForCLI_DebugToggle(t *testing.T) {
	var buf bytes.Buffer

	quiet := logging.ForCLI(&buf, false)
	quiet.Debug("hidden")
	quiet.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug line should be suppressed, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn line missing, got %q", buf.String())
	}

	buf.Reset()
	verbose := logging.ForCLI(&buf, true)
	verbose.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing with debug enabled, got %q", buf.String())
	}
}

func TestForCommand_OnlyErrorsByDefault(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.ForCommand(&buf, false)
	logger.Warn("absorbed")
	logger.Error("broken")
	if strings.Contains(buf.String(), "absorbed") {
		t.Errorf("warn line should be suppressed, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "broken") {
		t.Errorf("error line missing, got %q", buf.String())
	}

	buf.Reset()
	logging.ForCommand(&buf, true).Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing with debug enabled, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug": log.DebugLevel,
		"info":  log.InfoLevel,
		"error": log.ErrorLevel,
		"":      log.WarnLevel,
		"bogus": log.WarnLevel,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	logger, f, err := logging.ToFile(dir, "test.log", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	logger.Warn("written", "k", "v")
}
