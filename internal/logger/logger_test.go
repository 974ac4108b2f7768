package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Adda-Baaj/frameseg/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitSetsPackageLogger(t *testing.T) {
	sugar, err := Init(&config.Config{AppName: "frameseg", LogLevel: "debug"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if sugar == nil || S != sugar {
		t.Fatalf("expected package logger to be set")
	}
	if !sugar.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestZapLoggerWritesStructuredField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core).Sugar())

	log.InfoObj("task submitted", "task", map[string]any{"id": "t1"})
	log.ErrorObj("task failed", "error", "boom")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "task submitted" || entries[0].ContextMap()["task"] == nil {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %v", entries[1].Level)
	}
}

func TestNewWithNilIsSafe(t *testing.T) {
	New(nil).WarnObj("dropped", "k", 1)
	NopLogger{}.InfoObj("dropped", "k", 1)
}
