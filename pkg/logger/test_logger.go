package logger

import "sync"

// Entry is a single captured log line.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// TestLogger is a Logger implementation that records entries in memory.
// Intended for assertions in tests; safe for concurrent use. Loggers derived
// via WithField/WithFields record into the same root.
type TestLogger struct {
	root   *testSink
	fields map[string]interface{}
}

type testSink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTestLogger creates a new in-memory logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{root: &testSink{}, fields: make(map[string]interface{})}
}

// Entries returns a copy of the recorded entries.
func (t *TestLogger) Entries() []Entry {
	t.root.mu.Lock()
	defer t.root.mu.Unlock()
	out := make([]Entry, len(t.root.entries))
	copy(out, t.root.entries)
	return out
}

func (t *TestLogger) record(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(t.fields)+len(fields))
	for k, v := range t.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	t.root.mu.Lock()
	t.root.entries = append(t.root.entries, Entry{Level: level, Message: msg, Fields: merged})
	t.root.mu.Unlock()
}

func (t *TestLogger) Debug(msg string) { t.record("debug", msg, nil) }
func (t *TestLogger) Info(msg string)  { t.record("info", msg, nil) }
func (t *TestLogger) Warn(msg string)  { t.record("warn", msg, nil) }
func (t *TestLogger) Error(msg string) { t.record("error", msg, nil) }
func (t *TestLogger) Fatal(msg string) { t.record("fatal", msg, nil) }

func (t *TestLogger) WithField(key string, value interface{}) Logger {
	return t.WithFields(map[string]interface{}{key: value})
}

func (t *TestLogger) WithFields(fields map[string]interface{}) Logger {
	child := &TestLogger{root: t.root, fields: make(map[string]interface{}, len(t.fields)+len(fields))}
	for k, v := range t.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (t *TestLogger) WithError(err error) Logger {
	if err == nil {
		return t
	}
	return t.WithField("error", err.Error())
}

func (t *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	t.record("debug", msg, fields)
}
func (t *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	t.record("info", msg, fields)
}
func (t *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	t.record("warn", msg, fields)
}
func (t *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	t.record("error", msg, fields)
}
