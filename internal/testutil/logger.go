// Package testutil provides test doubles shared by package tests.
package testutil

import (
	"sync"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
)

// LogEntry is one entry captured by RecordingLogger.
type LogEntry struct {
	Level   string
	Name    string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the field called key, if present.
func (e LogEntry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type entryLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

// RecordingLogger implements logging.Logger and keeps every entry in
// memory.  Children created by With, WithError and Named record into the
// same log.
type RecordingLogger struct {
	log    *entryLog
	name   string
	fields []logging.Field
}

// NewRecordingLogger returns an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{log: &entryLog{}}
}

func (r *RecordingLogger) record(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(r.fields)+len(fields))
	all = append(all, r.fields...)
	all = append(all, fields...)
	r.log.mu.Lock()
	r.log.entries = append(r.log.entries, LogEntry{Level: level, Name: r.name, Message: msg, Fields: all})
	r.log.mu.Unlock()
}

func (r *RecordingLogger) Debug(msg string, fields ...logging.Field) { r.record("debug", msg, fields) }
func (r *RecordingLogger) Info(msg string, fields ...logging.Field)  { r.record("info", msg, fields) }
func (r *RecordingLogger) Warn(msg string, fields ...logging.Field)  { r.record("warn", msg, fields) }
func (r *RecordingLogger) Error(msg string, fields ...logging.Field) { r.record("error", msg, fields) }

// Fatal records at fatal level and does not exit.
func (r *RecordingLogger) Fatal(msg string, fields ...logging.Field) { r.record("fatal", msg, fields) }

func (r *RecordingLogger) With(fields ...logging.Field) logging.Logger {
	child := *r
	child.fields = append(append([]logging.Field{}, r.fields...), fields...)
	return &child
}

func (r *RecordingLogger) WithError(err error) logging.Logger {
	return r.With(logging.ErrFields(err)...)
}

func (r *RecordingLogger) Named(name string) logging.Logger {
	child := *r
	if r.name == "" {
		child.name = name
	} else {
		child.name = r.name + "." + name
	}
	return &child
}

func (r *RecordingLogger) Sync() error { return nil }

// Entries returns a copy of everything recorded so far.
func (r *RecordingLogger) Entries() []LogEntry {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	out := make([]LogEntry, len(r.log.entries))
	copy(out, r.log.entries)
	return out
}

// Filter returns the entries recorded at level with message msg.
func (r *RecordingLogger) Filter(level, msg string) []LogEntry {
	var out []LogEntry
	for _, e := range r.Entries() {
		if e.Level == level && e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether an entry with level and msg was recorded.
func (r *RecordingLogger) HasMessage(level, msg string) bool {
	return len(r.Filter(level, msg)) > 0
}

// Reset drops every recorded entry.
func (r *RecordingLogger) Reset() {
	r.log.mu.Lock()
	r.log.entries = nil
	r.log.mu.Unlock()
}
