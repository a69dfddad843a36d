// Package diag writes structured run events as single-line JSON. Every
// event names the component that produced it and the stage it reports
// (start, finish, error, note), so a run can be followed with grep or jq.
package diag

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel maps a configured level name to a Level. Unknown names mean Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event is one log line.
type Event struct {
	Level string            `json:"level"`
	TS    string            `json:"ts"`
	RunID string            `json:"run_id,omitempty"`
	Comp  string            `json:"comp"`
	Stage string            `json:"stage"`
	Code  string            `json:"code,omitempty"`
	DurMS int64             `json:"dur_ms,omitempty"`
	Count int64             `json:"count,omitempty"`
	Path  string            `json:"path,omitempty"`
	Msg   string            `json:"msg"`
	KV    map[string]string `json:"kv,omitempty"`
}

// Logger is safe for concurrent use. A nil *Logger discards everything.
type Logger struct {
	runID string
	level Level
	mu    sync.Mutex
	w     io.Writer
	now   func() time.Time
}

// New returns a logger writing to w (stderr when nil) at the given level.
func New(w io.Writer, runID, level string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{runID: runID, level: ParseLevel(level), w: w, now: time.Now}
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = l.now().UTC().Format(time.RFC3339Nano)
	ev.RunID = l.runID
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(append(b, '\n'))
}

// Debug records a debug note for a single path.
func (l *Logger) Debug(comp, path, msg string) {
	l.log(Debug, Event{Comp: comp, Stage: "note", Path: path, Msg: msg})
}

// Info records an informational note.
func (l *Logger) Info(comp, msg string, kv map[string]string) {
	l.log(Info, Event{Comp: comp, Stage: "note", Msg: msg, KV: kv})
}

// Warn records a per-file problem that does not stop the run.
func (l *Logger) Warn(comp, code, path, msg string) {
	l.log(Warn, Event{Comp: comp, Stage: "note", Code: code, Path: path, Msg: msg})
}

// Error records a failure. durSince, when set, adds the elapsed time.
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg})
}

// Start records a start event and returns the timer for its finish.
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWithKV is Start with extra key/value context.
func (l *Logger) StartWithKV(comp, msg string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// Timer measures one start→finish span.
type Timer struct {
	l    *Logger
	comp string
	t0   time.Time
}

// Finish records the finish event with an optional count.
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, Msg: msg})
}

// Fail records an error event carrying the elapsed time since Start.
func (t *Timer) Fail(code, msg string) {
	if t == nil || t.l == nil {
		return
	}
	t.l.Error(t.comp, code, msg, &t.t0)
}
