package logger

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
)

// RollbarLogger mirrors every entry to stderr and reports it to Rollbar.
type RollbarLogger struct {
	std *log.Logger
}

var _ Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, token, env, codeVersion string) *RollbarLogger {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetCodeVersion(codeVersion)
	rollbar.SetStackTracer(errors.StackTracer)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	return &RollbarLogger{std: std}
}

// prepare keeps errors and extras maps as rollbar arguments; anything else is
// folded into the message.
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	parts := []string{msg}
	out := make([]interface{}, 1, len(args)+1)
	for _, arg := range args {
		switch arg.(type) {
		case error, map[string]interface{}:
			out = append(out, arg)
		default:
			parts = append(parts, fmt.Sprint(arg))
		}
	}
	out[0] = strings.Join(parts, " ")
	return out
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	if len(args) == 0 {
		l.std.Printf("%s %s", level, msg)
		return
	}
	l.std.Printf("%s %s %+v", level, msg, args)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.print("FATAL", msg, args)
	os.Exit(1)
}

// Close flushes queued reports.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}
