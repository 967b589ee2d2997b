package eval

import (
	"time"

	"github.com/goliatone/go-composite/pkg/logging"
)

// LogEvent describes an evaluation attempt for logging.
type LogEvent struct {
	Engine   string
	Expr     string
	Label    string
	Duration time.Duration
	Err      error
}

// Logger records evaluator events.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(LogEvent) {}

// StructuredLogger forwards evaluation events to a logging.Logger: failures
// at error level, successes at debug level.
func StructuredLogger(logger logging.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return LoggerFunc(func(event LogEvent) {
		kv := []any{
			"engine", event.Engine,
			"expr", event.Expr,
			"label", event.Label,
			"duration", event.Duration,
		}
		if event.Err != nil {
			logger.Error("expression evaluation failed", append(kv, "error", event.Err)...)
			return
		}
		logger.Debug("expression evaluated", kv...)
	})
}
