package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"INFO":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"fatal": zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := wrap(zap.New(core)).Named("importer").With(String("file", "bookmarks.html"))

	log.Warn("entry skipped", Int("line", 3), Error(errors.New("bad url")))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "importer" {
		t.Errorf("LoggerName = %q", e.LoggerName)
	}
	fields := e.ContextMap()
	if fields["file"] != "bookmarks.html" || fields["line"] != int64(3) || fields["error"] != "bad url" {
		t.Errorf("fields = %v", fields)
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Info("ignored")
	log.Named("x").With(Bool("b", true)).Debugf("%d", 1)
	if err := log.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
}
