package logger

import (
	"fmt"
	"os"
	"time"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, etc.)
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ConsoleLogger writes timestamped human-readable logs to stdout/stderr.
// This is the default for action runs, where the log lines end up in the
// GitHub Actions step output.
type ConsoleLogger struct{}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	fmt.Printf("%s INFO - "+msg+"\n", prepend(args)...)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s ERROR - "+msg+"\n", prepend(args)...)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	fmt.Printf("%s DEBUG - "+msg+"\n", prepend(args)...)
}

func prepend(args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, time.Now().Format("2006-01-02 15:04:05"))
	return append(out, args...)
}

// SilentLogger discards all log messages.
// Used when running with the --watch TUI to prevent log output from
// interfering with the display.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}
