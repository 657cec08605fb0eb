// Package compose implements the composition buffer: a single-slot,
// time-windowed state machine that accumulates text classified as IME
// output, arms an idle timer, and emits the accumulated text either when the
// timer fires or when something explicitly flushes it.
//
// A Buffer is not safe for concurrent use. Per the proxy's single-threaded
// event-loop model, it is owned exclusively by the supervisor's goroutine;
// the timer channel is exposed for that goroutine to select on rather than
// firing a callback from a separate timer goroutine.
package compose

import (
	"time"
	"unicode/utf8"

	"github.com/d-init-d/terminal-ime-proxy/internal/trace"
)

// DefaultTimeout is the default idle gap the buffer waits for before
// flushing a composition: typing bursts during IME settlement are rarely
// more than 20ms apart, and the gap to the next keystroke after settlement
// is typically 100ms+.
const DefaultTimeout = 50 * time.Millisecond

// Buffer coalesces IME text across an idle-timeout window.
type Buffer struct {
	timeout   time.Duration
	onFlush   func(string)
	onRegular func(string)
	sink      trace.Sink

	runes     []rune
	composing bool
	timer     *time.Timer
}

// Option configures a Buffer at construction.
type Option func(*Buffer)

// WithTracer attaches a trace sink; omit for the default no-op sink.
func WithTracer(sink trace.Sink) Option {
	return func(b *Buffer) { b.sink = sink }
}

// New creates a Buffer with the given timeout and sinks. onFlush receives
// settled composition text (via timer or explicit Flush); onRegular receives
// chunks classified as Regular. Both may be nil, in which case emissions are
// simply discarded (useful for tests that only inspect Peek/IsComposing).
func New(timeout time.Duration, onFlush, onRegular func(string), opts ...Option) *Buffer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	b := &Buffer{
		timeout:   timeout,
		onFlush:   onFlush,
		onRegular: onRegular,
		sink:      trace.NopSink{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TimerC returns the channel of the currently armed timer, or nil if no
// timer is armed. The supervisor's event loop selects on this alongside
// stdin and PTY output; a nil channel simply never fires in a select.
func (b *Buffer) TimerC() <-chan time.Time {
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// IsComposing reports whether the buffer currently holds unflushed text.
func (b *Buffer) IsComposing() bool {
	return b.composing
}

// Peek returns the buffer's current contents without consuming them.
func (b *Buffer) Peek() string {
	return string(b.runes)
}

func (b *Buffer) cancelTimer() {
	if b.timer == nil {
		return
	}
	b.timer.Stop()
	b.timer = nil
}

func (b *Buffer) armTimer() {
	b.cancelTimer()
	b.timer = time.NewTimer(b.timeout)
}

// Process accepts a chunk and its pre-computed classification. When isIME is
// true the text is appended to the buffer and the idle timer is (re)armed.
// When isIME is false, any in-flight composition is flushed first so the
// child always receives completed compositions before the regular input
// that follows them, then the chunk is emitted immediately.
func (b *Buffer) Process(text string, isIME bool) {
	if isIME {
		b.runes = append(b.runes, []rune(text)...)
		b.composing = true
		b.armTimer()
		b.sink.Record("compose", "process_ime", map[string]any{"runes": utf8.RuneCountInString(text)})
		return
	}

	if b.composing {
		b.Flush()
	}
	b.sink.Record("compose", "process_regular", map[string]any{"bytes": len(text)})
	b.emitRegular(text)
}

// TimerFired must be called by the supervisor's event loop when TimerC's
// channel fires. It is equivalent to an external Flush at that instant.
func (b *Buffer) TimerFired() {
	b.sink.Record("compose", "timer_fired", nil)
	b.Flush()
}

// Flush emits any buffered text via the flush sink and disarms the timer.
// Idempotent and safe to call on an empty buffer. Returns the text that was
// flushed (empty string if nothing was buffered).
func (b *Buffer) Flush() string {
	b.cancelTimer()
	if len(b.runes) == 0 {
		b.composing = false
		return ""
	}
	text := string(b.runes)
	b.runes = b.runes[:0]
	b.composing = false
	b.sink.Record("compose", "flush", map[string]any{"runes": utf8.RuneCountInString(text)})
	b.emitFlush(text)
	return text
}

// Backspace removes the buffer's last code point (never its last byte,
// preserving UTF-8 validity) and reports whether it absorbed the deletion.
// An empty buffer returns false so the caller (the special-key router) can
// forward the backspace byte to the child instead.
func (b *Buffer) Backspace() bool {
	if len(b.runes) == 0 {
		return false
	}
	b.runes = b.runes[:len(b.runes)-1]
	if len(b.runes) == 0 {
		b.cancelTimer()
		b.composing = false
	}
	b.sink.Record("compose", "backspace", map[string]any{"remaining": len(b.runes)})
	return true
}

// Clear discards the buffer without emitting and disarms the timer.
func (b *Buffer) Clear() {
	b.cancelTimer()
	b.runes = b.runes[:0]
	b.composing = false
	b.sink.Record("compose", "clear", nil)
}

func (b *Buffer) emitFlush(text string) {
	if b.onFlush == nil {
		return
	}
	b.safeEmit("flush", func() { b.onFlush(text) })
}

func (b *Buffer) emitRegular(text string) {
	if b.onRegular == nil {
		return
	}
	b.safeEmit("regular", func() { b.onRegular(text) })
}

// safeEmit recovers a panicking sink callback so a misbehaving consumer can
// never wedge composition state; the buffer's own invariants (timer
// disarmed, buffer cleared) already hold by the time a sink runs.
func (b *Buffer) safeEmit(which string, emit func()) {
	defer func() {
		if r := recover(); r != nil {
			b.sink.Record("compose", "sink_panic", map[string]any{"sink": which, "recovered": r})
		}
	}()
	emit()
}
