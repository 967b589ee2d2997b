package logging

import (
	"fmt"
)

// Debug switches advisory output. Errors are always reported.
type Debug struct {
	Warn0 bool
	Warn1 bool
	Info  bool
}

// Reporter routes diagnostics by severity. It replaces a process-wide
// development flag: every engine instance carries its own.
type Reporter struct {
	logger Logger
	strict bool
	debug  Debug
}

// NewReporter builds a reporter. A nil logger falls back to Default.
func NewReporter(logger Logger, strict bool, debug Debug) *Reporter {
	if logger == nil {
		logger = Default()
	}
	return &Reporter{logger: logger, strict: strict, debug: debug}
}

// Strict reports whether fatal errors propagate to callers.
func (r *Reporter) Strict() bool {
	return r == nil || r.strict
}

// Logger exposes the underlying logger.
func (r *Reporter) Logger() Logger {
	if r == nil || r.logger == nil {
		return Default()
	}
	return r.logger
}

// Fail reports err. In strict mode err is returned unchanged; in lenient mode
// it is logged and swallowed. Callers only use Fail for operations that have
// no result value.
func (r *Reporter) Fail(err error) error {
	if err == nil {
		return nil
	}
	if r.Strict() {
		return err
	}
	r.Logger().Error(err.Error())
	return nil
}

// Errorf is Fail with a formatted error.
func (r *Reporter) Errorf(format string, args ...any) error {
	return r.Fail(fmt.Errorf(format, args...))
}

// Warn0 logs policy rejections.
func (r *Reporter) Warn0(msg string, kv ...any) {
	if r != nil && r.debug.Warn0 {
		r.Logger().Warn(msg, kv...)
	}
}

// Warn1 logs auto-corrected shape mismatches and redundant operations.
func (r *Reporter) Warn1(msg string, kv ...any) {
	if r != nil && r.debug.Warn1 {
		r.Logger().Warn(msg, kv...)
	}
}

// Info logs lifecycle notes.
func (r *Reporter) Info(msg string, kv ...any) {
	if r != nil && r.debug.Info {
		r.Logger().Info(msg, kv...)
	}
}
