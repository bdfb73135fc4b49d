package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		debugSeen bool
		json      bool
	}{
		{"debug level text", &Config{Level: "debug", Format: "text"}, true, false},
		{"info level json", &Config{Level: "info", Format: "json"}, false, true},
		{"uppercase format", &Config{Level: "warn", Format: "JSON"}, false, true},
		{"default level", &Config{Level: "invalid", Format: "text"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf
			Init(tt.config)

			slog.Debug("debug line")
			slog.Error("error line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.debugSeen {
				t.Errorf("Expected debug output %v, got %v", tt.debugSeen, got)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.json {
				t.Errorf("Expected json output %v, got %q", tt.json, out)
			}
		})
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithUser(ctx, "jane.doe@contractdesk.local", "user")

	// plain slog calls with a context get the fields too
	slog.InfoContext(ctx, "contract created", "contract_id", "ctr-1003")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Failed to parse log line %q: %v", buf.String(), err)
	}
	want := map[string]string{
		"request_id":  "req-42",
		"user_id":     "jane.doe@contractdesk.local",
		"role":        "user",
		"contract_id": "ctr-1003",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("Expected %s=%s, got %v", k, v, line[k])
		}
	}
	if got := RequestID(ctx); got != "req-42" {
		t.Errorf("Expected request id req-42, got %q", got)
	}
}

func TestWithContextPlainHandler(t *testing.T) {
	// a default logger installed without Init still gets the fields
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := WithUser(WithRequestID(context.Background(), "req-7"), "admin@contractdesk.local", "admin")
	Warn(ctx, "access denied")

	out := buf.String()
	for _, want := range []string{"request_id=req-7", "user_id=admin@contractdesk.local", "role=admin", "access denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log line %q", want, out)
		}
	}
	if strings.Count(out, "request_id=") != 1 {
		t.Errorf("Expected request_id once, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("Expected %v for %q, got %v", want, in, got)
		}
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "text", Output: &buf})
	ctx := WithRequestID(context.Background(), "req-123")

	tests := []struct {
		name  string
		log   func(context.Context, string, ...any)
		level string
	}{
		{"info", Info, "level=INFO"},
		{"debug", Debug, "level=DEBUG"},
		{"warn", Warn, "level=WARN"},
		{"error", Error, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log(ctx, tt.name+" message", "key", "value")
			out := buf.String()
			for _, want := range []string{tt.level, tt.name + " message", "key=value", "request_id=req-123"} {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in %q", want, out)
				}
			}
		})
	}
}
