package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_Formats(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{"text", false},
		{"json", true},
		// A bytes.Buffer is never a terminal, so auto resolves to JSON.
		{"auto", true},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithWriter(&buf, "info", tt.format).Info("chunk fetched", "request_id", "abc", "chunk", 3)

			var record map[string]any
			err := json.Unmarshal(buf.Bytes(), &record)
			if tt.wantJSON {
				if err != nil {
					t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
				}
				if record["request_id"] != "abc" || record["chunk"] != float64(3) {
					t.Errorf("unexpected record %v", record)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected text output, got JSON %q", buf.String())
			}
			if !strings.Contains(buf.String(), "request_id=abc") {
				t.Errorf("text output %q missing request_id", buf.String())
			}
		})
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"d", "i", "w", "e"}},
		{"info", []string{"i", "w", "e"}},
		{"warn", []string{"w", "e"}},
		{"error", []string{"e"}},
		{"bogus", []string{"i", "w", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level, "json")
			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var record struct {
					Msg string `json:"msg"`
				}
				if err := json.Unmarshal([]byte(line), &record); err != nil {
					t.Fatalf("bad line %q: %v", line, err)
				}
				got = append(got, record.Msg)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("logged %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"invalid": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNew_WritesToStderr(t *testing.T) {
	if New("error", "text").Handler() == nil {
		t.Fatal("New() returned a logger without a handler")
	}
}
