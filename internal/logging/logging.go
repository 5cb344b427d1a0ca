// Package logging provides the gateway's structured event logger: a thin
// wrapper over the standard library's log.Logger emitting one JSON object
// per line, in the same spirit as apibridge.Client's logEvent helper.
package logging

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger emits structured JSON lines. Nil-safe: a nil *Logger silently
// drops events so components can hold an optional logger field.
type Logger struct {
	std *log.Logger
}

// New builds a Logger writing to os.Stdout with a fixed prefix and UTC
// timestamps, matching the teacher's log.New(...,
// log.LstdFlags|log.LUTC) convention.
func New(prefix string) *Logger {
	return &Logger{std: log.New(os.Stdout, prefix, log.LstdFlags|log.LUTC)}
}

// Event writes one structured line: {"event": kind, ...fields, "ts": ...}.
func (l *Logger) Event(kind string, fields map[string]any) {
	if l == nil || l.std == nil {
		return
	}
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["event"] = kind
	out["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	// encoding/json sorts map[string]any keys lexicographically, so log
	// lines come out with stable field order without extra bookkeeping.
	raw, err := json.Marshal(out)
	if err != nil {
		l.std.Printf("event=%s marshal_error=%v", kind, err)
		return
	}
	l.std.Println(string(raw))
}

// Errorf logs a formatted operator-facing message without structuring it.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.std == nil {
		return
	}
	l.std.Printf(format, args...)
}
