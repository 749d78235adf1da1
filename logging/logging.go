// Package logging provides the logger collaborator injected into every
// esch component.
package logging

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Logger accepts formatted messages at four levels. It is a subset of
// commonlog.Logger, so any commonlog logger can be injected directly.
type Logger interface {
	Errorf(format string, args ...any)
	Warningf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...any)   {}
func (nopLogger) Warningf(string, ...any) {}
func (nopLogger) Infof(string, ...any)    {}
func (nopLogger) Debugf(string, ...any)   {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// NewConsole configures the commonlog simple backend to write to stderr and
// returns the named logger. Verbosity follows commonlog: 0 shows notices and
// above, 1 adds info, 2 adds debug, negative values are quieter.
func NewConsole(name string, verbosity int) Logger {
	commonlog.Configure(verbosity, nil)
	return commonlog.GetLogger(name)
}

// Level names the severity of a recorded message.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

// Entry is one message captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
}

// Recorder is a Logger that keeps every message in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(level Level, format string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (r *Recorder) Errorf(format string, args ...any)   { r.record(LevelError, format, args) }
func (r *Recorder) Warningf(format string, args ...any) { r.record(LevelWarning, format, args) }
func (r *Recorder) Infof(format string, args ...any)    { r.record(LevelInfo, format, args) }
func (r *Recorder) Debugf(format string, args ...any)   { r.record(LevelDebug, format, args) }

// Entries returns the messages recorded at the given level, oldest first.
func (r *Recorder) Entries(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Reset drops all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}
