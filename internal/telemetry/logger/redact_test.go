package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestRedactSensitive_ValuePrefix(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"bearer header", "Bearer abcdefghijkl", "Bearer abc...jkl"},
		{"short bearer", "Bearer abc", "Bearer ***"},
		{"access token", "iwk_0123456789", "iwk_012...789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactSensitive(slog.String("header", tt.value))
			if got.Value.String() != tt.want {
				t.Errorf("redactSensitive() = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"token", redactedValue},
		{"remote_token", redactedValue},
		{"secret_key", redactedValue},
		{"access_key", redactedValue},
		{"Authorization", redactedValue},
		{"password", redactedValue},
		{"project", "v"},
		{"snapshot_id", "v"},
		{"document", "v"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := redactSensitive(slog.String(tt.key, "v"))
			if got.Value.String() != tt.want {
				t.Errorf("redactSensitive(%q) = %q, want %q", tt.key, got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactSensitive_EmptyAndNonString(t *testing.T) {
	if got := redactSensitive(slog.String("token", "")); got.Value.String() != "" {
		t.Errorf("empty token = %q, want empty", got.Value.String())
	}
	if got := redactSensitive(slog.Int("token", 3)); got.Value.Int64() != 3 {
		t.Errorf("int token changed: %v", got.Value)
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("remote configured", slog.Group("remote", slog.String("base_url", "https://inkweld.example.com"), slog.String("token", "abc")))

	var logEntry struct {
		Remote map[string]string `json:"remote"`
	}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if logEntry.Remote["token"] != redactedValue {
		t.Errorf("remote.token = %q, want redacted", logEntry.Remote["token"])
	}
	if logEntry.Remote["base_url"] != "https://inkweld.example.com" {
		t.Errorf("remote.base_url = %q", logEntry.Remote["base_url"])
	}
}

func TestRedactString(t *testing.T) {
	if got := RedactString("Bearer abcdefghijkl"); got != "Bearer abc...jkl" {
		t.Errorf("RedactString() = %q", got)
	}
	if got := RedactString("plain text"); got != "plain text" {
		t.Errorf("RedactString() = %q", got)
	}
}

func TestIsSensitiveValue(t *testing.T) {
	if !IsSensitiveValue("iwk_abc") {
		t.Error("iwk_ prefix should be sensitive")
	}
	if IsSensitiveValue("alice:novel:doc-1") {
		t.Error("document key should not be sensitive")
	}
}
