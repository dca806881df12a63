package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// capture builds a logger writing JSON lines to a buffer and restores the
// process-wide level when the test ends.
func capture(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	prev := GetLevel()
	t.Cleanup(func() { SetLevel(prev) })

	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, &buf
}

// entries decodes every JSON line in buf.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_Formats(t *testing.T) {
	prev := GetLevel()
	t.Cleanup(func() { SetLevel(prev) })

	var text bytes.Buffer
	l, err := New(Config{Level: "info", Format: "console", Output: &text})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("pass finished", "created", 2)
	if !strings.Contains(text.String(), "msg=\"pass finished\"") || !strings.Contains(text.String(), "created=2") {
		t.Errorf("text output = %q", text.String())
	}

	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestLevelThreshold(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{"info", []string{"INFO", "WARN", "ERROR"}},
		{"warning", []string{"WARN", "ERROR"}},
		{"ERROR", []string{"ERROR"}},
		{"verbose", []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, buf := capture(t, tt.level)
			l.Debug("health check scheduled")
			l.Info("snapshot created")
			l.Warn("remote unreachable")
			l.Error("push failed")

			got := entries(t, buf)
			if len(got) != len(tt.want) {
				t.Fatalf("logged %d entries, want %d: %s", len(got), len(tt.want), buf)
			}
			for i, e := range got {
				if e["level"] != tt.want[i] {
					t.Errorf("entry %d level = %v, want %s", i, e["level"], tt.want[i])
				}
			}
		})
	}
}

func TestSetLevel_ReachesExistingLoggers(t *testing.T) {
	l, buf := capture(t, "error")
	sync := l.With("component", "sync")

	sync.Info("before reload")
	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Fatalf("GetLevel() = %q", GetLevel())
	}
	sync.Debug("after reload")
	SetLevel("nonsense")
	if GetLevel() != "info" {
		t.Errorf("unknown level should fall back to info, got %q", GetLevel())
	}

	got := entries(t, buf)
	if len(got) != 1 || got[0]["msg"] != "after reload" {
		t.Fatalf("entries = %v", got)
	}
	if got[0]["component"] != "sync" {
		t.Errorf("With() attrs lost: %v", got[0])
	}
}

func TestLogger_RedactsRemoteCredentials(t *testing.T) {
	l, buf := capture(t, "info")
	l.With("project", "alice/novel").Info("remote request",
		"authorization", "Bearer eyJhbGciOi",
		"value", "iwk_live_123",
		"refresh_token", "opaque",
		"path", "/api/v1/projects",
	)

	got := entries(t, buf)
	if len(got) != 1 {
		t.Fatalf("entries = %v", got)
	}
	e := got[0]
	if e["authorization"] != "Bearer eyJ...iOi" {
		t.Errorf("authorization = %v, want masked", e["authorization"])
	}
	if e["value"] != "iwk_liv...123" {
		t.Errorf("value = %v, want masked", e["value"])
	}
	if e["refresh_token"] != redactedValue {
		t.Errorf("refresh_token = %v, want redacted", e["refresh_token"])
	}
	if e["path"] != "/api/v1/projects" || e["project"] != "alice/novel" {
		t.Errorf("ordinary attrs altered: %v", e)
	}
}

func TestLogger_WithContext(t *testing.T) {
	l, buf := capture(t, "info")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context must not swallow the entry.
	l.WithContext(ctx).Warn("shutting down")
	if got := entries(t, buf); len(got) != 1 {
		t.Errorf("entries = %v", got)
	}
}

func TestDefault_Replaceable(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := capture(t, "info")
	SetDefault(l)
	if Default() != l {
		t.Fatal("Default() should return the logger passed to SetDefault")
	}
	Info("from package func", "pass_id", "p-1")
	Debug("hidden")
	got := entries(t, buf)
	if len(got) != 1 || got[0]["pass_id"] != "p-1" {
		t.Errorf("entries = %v", got)
	}
}

func TestSlog(t *testing.T) {
	l, buf := capture(t, "debug")

	Slog(l).Info("from slog", "auth_token", "abc")

	got := entries(t, buf)
	if len(got) != 1 {
		t.Fatalf("entries = %v", got)
	}
	logEntry := got[0]
	if logEntry["msg"] != "from slog" {
		t.Errorf("msg = %v", logEntry["msg"])
	}
	if logEntry["auth_token"] != redactedValue {
		t.Errorf("auth_token = %v, want redacted", logEntry["auth_token"])
	}
}

type recordingLogger struct {
	Logger
	warned []string
}

func (r *recordingLogger) Warn(msg string, args ...any) { r.warned = append(r.warned, msg) }

func TestSlog_Bridge(t *testing.T) {
	rec := &recordingLogger{Logger: Nop()}
	Slog(rec).With("project", "alice/novel").Warn("bridged")
	if len(rec.warned) != 1 || rec.warned[0] != "bridged" {
		t.Errorf("warned = %v", rec.warned)
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != Default() {
		t.Error("Or(nil) should return Default()")
	}
	n := Nop()
	if Or(n) != n {
		t.Error("Or(l) should return l")
	}
	n.Error("discarded")
}
