package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("policy evaluated", "decision", "allow")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if record["msg"] != "policy evaluated" || record["decision"] != "allow" {
		t.Errorf("record = %v", record)
	}
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("started")
	if !strings.Contains(buf.String(), "msg=started") {
		t.Errorf("output = %q, want text format", buf.String())
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "error", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info record emitted at error level: %q", buf.String())
	}
	logger.Error("emitted")
	if buf.Len() == 0 {
		t.Error("error record suppressed")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLevel(%q) = (%v, %v), want (%v, wantErr=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if _, err := parseFormat("yaml"); err == nil {
		t.Error("parseFormat(yaml) succeeded, want error")
	}
	for _, in := range []string{"", "json", "JSON", "text", "TEXT"} {
		if _, err := parseFormat(in); err != nil {
			t.Errorf("parseFormat(%q) failed: %v", in, err)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "nope"}); err == nil {
		t.Error("invalid level accepted")
	}
	if _, err := New(Config{Format: "nope"}); err == nil {
		t.Error("invalid format accepted")
	}
}
