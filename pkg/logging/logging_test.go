package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	var out bytes.Buffer
	pw := NewPrefixWriter("> ", &out)

	pw.Write([]byte("one\ntw"))
	pw.Write([]byte("o\nthree"))
	if got, want := out.String(), "> one\n> two\n"; got != want {
		t.Errorf("after writes = %q, want %q", got, want)
	}

	if err := pw.Flush(); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "> one\n> two\n> three\n"; got != want {
		t.Errorf("after flush = %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		level    string
		jsonMode bool
	}{
		{in: "debug", level: "debug"},
		{in: "json", level: "info", jsonMode: true},
		{in: "json:trace", level: "trace", jsonMode: true},
		{in: "json:", level: "info", jsonMode: true},
	}
	for _, tt := range tests {
		level, jsonMode := parseLevel(tt.in)
		if level != tt.level || jsonMode != tt.jsonMode {
			t.Errorf("parseLevel(%q) = (%q, %v), want (%q, %v)", tt.in, level, jsonMode, tt.level, tt.jsonMode)
		}
	}
}

func TestResolveLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	if level, source := ResolveLevel(""); level != "warn" || source != "default" {
		t.Errorf("ResolveLevel(\"\") = (%q, %q), want default warn", level, source)
	}

	t.Setenv(EnvLogLevel, "info")
	if level, source := ResolveLevel(""); level != "info" || source != EnvLogLevel {
		t.Errorf("ResolveLevel with env = (%q, %q)", level, source)
	}
	if level, _ := ResolveLevel("trace"); level != "trace" {
		t.Errorf("CLI level not preferred, got %q", level)
	}
}

func TestNewLogger_Prefix(t *testing.T) {
	t.Setenv(EnvJSONLog, "")
	var out bytes.Buffer
	logger := NewLogger("test", "info", &out)
	logger.Info("🔗 hello", "key", "value")

	line := out.String()
	if !strings.HasPrefix(line, linePrefix) {
		t.Errorf("line %q lacks prefix %q", line, linePrefix)
	}
	if !strings.Contains(line, "key=value") {
		t.Errorf("line %q lacks key/value pair", line)
	}
}
