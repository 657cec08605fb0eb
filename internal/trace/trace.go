// Package trace implements the proxy's --debug observability sink: a
// structured event recorder that every other component reports to, entirely
// independent of the data-plane decisions those components make. Removing
// the sink (the default NopSink) must never change proxy behavior.
package trace

import (
	"fmt"
	"io"
	"time"
)

// Sink receives one Record call per classification, buffer mutation, flush,
// special-key event, or PTY lifecycle event when tracing is enabled.
type Sink interface {
	Record(component, kind string, detail map[string]any)
}

// NopSink discards every record. It is the default sink so the data path
// pays no cost for tracing when --debug is off.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(string, string, map[string]any) {}

// StderrSink writes one line per event to w via direct fmt.Fprintf calls
// rather than through a structured-logging framework.
type StderrSink struct {
	w   io.Writer
	now func() time.Time
}

// NewStderrSink returns a Sink that writes formatted trace lines to w.
func NewStderrSink(w io.Writer) *StderrSink {
	return &StderrSink{w: w, now: time.Now}
}

// Record implements Sink.
func (s *StderrSink) Record(component, kind string, detail map[string]any) {
	ts := s.now().Format("15:04:05.000")
	if len(detail) == 0 {
		fmt.Fprintf(s.w, "[%s] %s/%s\n", ts, component, kind)
		return
	}
	fmt.Fprintf(s.w, "[%s] %s/%s %v\n", ts, component, kind, detail)
}
