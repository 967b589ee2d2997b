package logging

import (
	"errors"
	"fmt"
	"testing"
)

type captureLogger struct {
	entries []string
}

func (c *captureLogger) record(level, msg string) { c.entries = append(c.entries, level+":"+msg) }

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("debug", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("info", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("warn", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("error", msg) }
func (c *captureLogger) With(...any) Logger         { return c }

func TestReporterStrictReturnsErrors(t *testing.T) {
	capture := &captureLogger{}
	reporter := NewReporter(capture, true, Debug{})
	base := errors.New("boom")
	if err := reporter.Fail(base); !errors.Is(err, base) {
		t.Fatalf("expected strict reporter to return error, got %v", err)
	}
	if len(capture.entries) != 0 {
		t.Fatalf("strict reporter should not log, got %v", capture.entries)
	}
}

func TestReporterLenientLogsErrors(t *testing.T) {
	capture := &captureLogger{}
	reporter := NewReporter(capture, false, Debug{})
	if err := reporter.Errorf("bad %s", "input"); err != nil {
		t.Fatalf("expected lenient reporter to swallow error, got %v", err)
	}
	if len(capture.entries) != 1 || capture.entries[0] != "error:bad input" {
		t.Fatalf("expected logged error, got %v", capture.entries)
	}
}

func TestReporterDebugSwitches(t *testing.T) {
	capture := &captureLogger{}
	reporter := NewReporter(capture, true, Debug{Warn0: true})
	reporter.Warn0("rejected")
	reporter.Warn1("corrected")
	reporter.Info("note")
	if fmt.Sprint(capture.entries) != "[warn:rejected]" {
		t.Fatalf("expected only warn0 output, got %v", capture.entries)
	}
}

func TestNilReporterIsStrict(t *testing.T) {
	var reporter *Reporter
	if !reporter.Strict() {
		t.Fatalf("nil reporter should default to strict")
	}
	reporter.Warn0("ignored")
}

func TestToFieldsHandlesOddPairs(t *testing.T) {
	fields := toFields([]any{"key", 1, 2, "x", "dangling"})
	if fields["key"] != 1 || fields["!badkey"] != "x" || fields["dangling"] != "!missing" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
