// Package logging provides a small leveled logger with text and JSON output.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (case-insensitive) to a Level.
// "warning" is accepted as an alias for "warn".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
	}
}

const timeFormat = "2006-01-02 15:04:05"

var (
	mu     sync.Mutex
	level  = LevelInfo
	output io.Writer
	asJSON bool
)

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) {
	mu.Lock()
	level = l
	mu.Unlock()
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput redirects log output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// SetFormat selects "json" or "text" (anything else) output.
func SetFormat(format string) {
	mu.Lock()
	asJSON = strings.EqualFold(format, "json")
	mu.Unlock()
}

// Debug logs at debug level.
func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args...) }

// Info logs at info level.
func Info(format string, args ...interface{}) { logf(LevelInfo, format, args...) }

// Warn logs at warn level.
func Warn(format string, args ...interface{}) { logf(LevelWarn, format, args...) }

// Error logs at error level.
func Error(format string, args ...interface{}) { logf(LevelError, format, args...) }

type jsonEntry struct {
	TS    string `json:"ts"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func logf(l Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if l < level {
		return
	}

	w := output
	if w == nil {
		w = os.Stderr
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	now := time.Now()

	if asJSON {
		b, err := json.Marshal(jsonEntry{
			TS:    now.UTC().Format(time.RFC3339Nano),
			Level: strings.ToLower(l.String()),
			Msg:   msg,
		})
		if err != nil {
			return
		}
		w.Write(append(b, '\n'))
		return
	}

	fmt.Fprintf(w, "%s [%s] %s\n", now.Format(timeFormat), l, msg)
}
