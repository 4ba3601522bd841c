package logger

import (
	"io"
	"log"
	"os"
)

// Logger is the application-wide logging surface. Args are printed after the
// message; errors among them are reported with their stack where the backend
// supports it.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// StdLogger writes to a standard library *log.Logger.
type StdLogger struct {
	std *log.Logger
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *StdLogger {
	return NewStdLogger(log.New(io.Discard, "", 0))
}

func (l *StdLogger) print(level, msg string, args []interface{}) {
	if len(args) == 0 {
		l.std.Printf("%s %s", level, msg)
		return
	}
	l.std.Printf("%s %s %+v", level, msg, args)
}

func (l *StdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l *StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l *StdLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	os.Exit(1)
}

// New picks the Rollbar backend when a token is configured and falls back to
// stderr otherwise.
func New(rollbarToken, env, codeVersion string) Logger {
	std := log.New(os.Stderr, "", log.LstdFlags)
	if rollbarToken == "" {
		return NewStdLogger(std)
	}
	return NewRollbarLogger(std, rollbarToken, env, codeVersion)
}
