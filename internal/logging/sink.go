// Package logging routes messages emitted by the image toolkit to a
// process-wide Sink, normally backed by log/slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Sink receives toolkit messages by category.
type Sink interface {
	DisplayText(s string)
	DisplayErrorText(s string)
	DisplayWarningText(s string)
	DisplayGenericOutputText(s string)
	DisplayDebugText(s string)
}

// SlogSink adapts a *slog.Logger to Sink. Trailing whitespace is removed
// since slog terminates records itself.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink returns a sink writing to l, or to slog.Default when l is nil.
func NewSlogSink(l *slog.Logger) *SlogSink {
	if l == nil {
		l = slog.Default()
	}
	return &SlogSink{Logger: l}
}

func (s *SlogSink) DisplayText(msg string)      { s.Logger.Info(trim(msg)) }
func (s *SlogSink) DisplayErrorText(msg string) { s.Logger.Error(trim(msg)) }

// DisplayWarningText logs msg at Warn unless warnings are turned off.
func (s *SlogSink) DisplayWarningText(msg string) {
	if !WarningDisplay() {
		return
	}
	s.Logger.Warn(trim(msg))
}
func (s *SlogSink) DisplayGenericOutputText(msg string) { s.Logger.Info(trim(msg)) }
func (s *SlogSink) DisplayDebugText(msg string)         { s.Logger.Debug(trim(msg)) }

func trim(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

var (
	mu             sync.RWMutex
	global         Sink = NewSlogSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	warningDisplay atomic.Bool
)

func init() {
	warningDisplay.Store(true)
}

// Global returns the sink currently receiving toolkit messages.
func Global() Sink {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// SetGlobal installs s as the global sink and returns the previous one.
// A nil s installs a sink that discards everything.
func SetGlobal(s Sink) Sink {
	if s == nil {
		s = NewSlogSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}
	mu.Lock()
	defer mu.Unlock()
	prev := global
	global = s
	return prev
}

// Use installs s for the duration of fn and restores the previous sink
// afterwards, also when fn panics.
func Use(s Sink, fn func()) {
	prev := SetGlobal(s)
	defer SetGlobal(prev)
	fn()
}

// SetWarningDisplay turns warning messages on or off globally.
func SetWarningDisplay(on bool) { warningDisplay.Store(on) }

// WarningDisplay reports whether warnings are displayed.
func WarningDisplay() bool { return warningDisplay.Load() }

// Infof sends a formatted message to the global sink.
func Infof(format string, args ...any) {
	Global().DisplayText(fmt.Sprintf(format, args...))
}

// Warnf sends a formatted warning unless warnings are turned off.
func Warnf(format string, args ...any) {
	if !WarningDisplay() {
		return
	}
	Global().DisplayWarningText(fmt.Sprintf(format, args...))
}

// Errorf sends a formatted error message to the global sink.
func Errorf(format string, args ...any) {
	Global().DisplayErrorText(fmt.Sprintf(format, args...))
}

// Debugf sends a formatted debug message to the global sink.
func Debugf(format string, args ...any) {
	Global().DisplayDebugText(fmt.Sprintf(format, args...))
}
