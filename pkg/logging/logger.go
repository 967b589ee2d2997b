package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is a structured logger. The variadic arguments are key/value pairs;
// keys must be strings.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus adapts a logrus logger. A nil logger uses the logrus standard
// logger.
func NewLogrus(logger *logrus.Logger) Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logrusLogger{entry: logrus.NewEntry(logger)}
}

// Default returns the logrus-backed logger used when none is configured.
func Default() Logger {
	return NewLogrus(nil)
}

// Discard returns a logger that writes nowhere. Useful in tests.
func Discard() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewLogrus(logger)
}

func (l logrusLogger) Debug(msg string, kv ...any) { l.fields(kv).Debug(msg) }
func (l logrusLogger) Info(msg string, kv ...any)  { l.fields(kv).Info(msg) }
func (l logrusLogger) Warn(msg string, kv ...any)  { l.fields(kv).Warn(msg) }
func (l logrusLogger) Error(msg string, kv ...any) { l.fields(kv).Error(msg) }

func (l logrusLogger) With(kv ...any) Logger {
	return logrusLogger{entry: l.fields(kv)}
}

func (l logrusLogger) fields(kv []any) *logrus.Entry {
	if len(kv) == 0 {
		return l.entry
	}
	return l.entry.WithFields(toFields(kv))
}

func toFields(kv []any) logrus.Fields {
	fields := make(logrus.Fields, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = "!badkey"
		}
		if i+1 < len(kv) {
			fields[key] = kv[i+1]
		} else {
			fields[key] = "!missing"
		}
	}
	return fields
}
