package logutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string into a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Fields carries structured context attached to a log message
type Fields map[string]interface{}

// Config holds logger configuration
type Config struct {
	Level   Level
	Format  string // "json" or "text"
	Service string
	Output  io.Writer // defaults to stdout
}

// Logger provides leveled structured logging
type Logger struct {
	config Config
	out    *log.Logger
	preset Fields
}

// New creates a logger with the given configuration
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "deskchat"
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Logger{
		config: config,
		out:    log.New(config.Output, "", 0),
	}
}

// NewDefault creates a text logger at info level
func NewDefault() *Logger {
	return New(Config{Level: InfoLevel, Format: "text"})
}

// WithFields returns a logger that attaches the given fields to every message
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.preset)+len(fields))
	for k, v := range l.preset {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		config: l.config,
		out:    l.out,
		preset: merged,
	}
}

func (l *Logger) log(level Level, msg string, fields []Fields) {
	if level < l.config.Level {
		return
	}

	merged := make(Fields, len(l.preset))
	for k, v := range l.preset {
		merged[k] = v
	}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}

	timestamp := time.Now().Format(time.RFC3339)

	if l.config.Format == "json" {
		record := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"service":   l.config.Service,
			"message":   msg,
		}
		if len(merged) > 0 {
			record["fields"] = merged
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			l.out.Printf("%s [%s] %s: %s (log marshal failed: %v)", timestamp, level, l.config.Service, msg, err)
			return
		}
		l.out.Println(string(encoded))
		return
	}

	line := fmt.Sprintf("%s [%s] %s: %s", timestamp, level, l.config.Service, msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, merged[k])
		}
		line += " | " + strings.Join(parts, " ")
	}
	l.out.Println(line)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(DebugLevel, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(InfoLevel, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(WarnLevel, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(ErrorLevel, msg, fields)
}
