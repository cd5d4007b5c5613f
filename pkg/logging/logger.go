// Package logging configures the hclog loggers used by menubuilder.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLogLevel selects the level when no --log-level flag is given.
	EnvLogLevel = "MENUBUILDER_LOG_LEVEL"
	// EnvJSONLog switches output to JSON when set to "1".
	EnvJSONLog = "MENUBUILDER_JSON_LOG"
	// EnvLogPath appends log output to a file instead of stderr.
	EnvLogPath = "MENUBUILDER_LOG_PATH"

	linePrefix   = "🍷 "
	defaultLevel = "warn"
)

// NewLogger creates a new hclog logger with standard settings
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level, jsonFormat := parseLevel(level)
	if os.Getenv(EnvJSONLog) == "1" {
		jsonFormat = true
	}

	if !jsonFormat {
		output = NewPrefixWriter(linePrefix, output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// parseLevel splits "json:debug" into ("debug", true). A bare "json" means
// JSON at info level.
func parseLevel(level string) (string, bool) {
	if !strings.HasPrefix(level, "json") {
		return level, false
	}
	if _, rest, ok := strings.Cut(level, ":"); ok && rest != "" {
		return rest, true
	}
	return "info", true
}

// ResolveLevel picks the effective level and reports where it came from:
// the CLI value, then MENUBUILDER_LOG_LEVEL, then the default.
func ResolveLevel(cliLevel string) (level string, source string) {
	if cliLevel != "" {
		return cliLevel, "CLI --log-level"
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		return env, EnvLogLevel
	}
	return defaultLevel, "default"
}

// Build creates the process logger for a command, honouring the level
// precedence and MENUBUILDER_LOG_PATH.
func Build(name, cliLevel string) hclog.Logger {
	level, source := ResolveLevel(cliLevel)

	var output io.Writer = os.Stderr
	if logPath := os.Getenv(EnvLogPath); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			output = file
		}
	}

	logger := NewLogger(name, level, output)
	logger.Debug("Log level", "level", level, "source", source)
	return logger
}

// OrNull returns logger, or a null logger when it is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
