package compose

import (
	"testing"
	"time"
)

func TestProcessIMEArmsTimerAndWithholds(t *testing.T) {
	var flushed []string
	var regular []string
	b := New(20*time.Millisecond, func(s string) { flushed = append(flushed, s) }, func(s string) { regular = append(regular, s) })

	b.Process("chà", true)

	if !b.IsComposing() {
		t.Fatal("expected buffer to be composing after IME chunk")
	}
	if got := b.Peek(); got != "chà" {
		t.Errorf("Peek() = %q, want %q", got, "chà")
	}
	if len(flushed) != 0 {
		t.Errorf("expected no flush before timeout, got %v", flushed)
	}
	if b.TimerC() == nil {
		t.Fatal("expected an armed timer channel")
	}
}

func TestTimerFiredFlushesWholeComposition(t *testing.T) {
	var flushed []string
	b := New(5*time.Millisecond, func(s string) { flushed = append(flushed, s) }, nil)

	b.Process("ch", true)
	b.Process("à", true)
	b.Process("o", true)

	select {
	case <-b.TimerC():
		b.TimerFired()
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer never fired")
	}

	if len(flushed) != 1 || flushed[0] != "chào" {
		t.Fatalf("flushed = %v, want [chào]", flushed)
	}
	if b.IsComposing() {
		t.Error("expected buffer idle after flush")
	}
}

func TestRegularInputFlushesPendingCompositionFirst(t *testing.T) {
	var order []string
	b := New(50*time.Millisecond,
		func(s string) { order = append(order, "flush:"+s) },
		func(s string) { order = append(order, "regular:"+s) },
	)

	b.Process("中", true)
	b.Process("x", false)

	want := []string{"flush:中", "regular:x"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestBackspaceRemovesCodePointNotByte(t *testing.T) {
	b := New(50*time.Millisecond, nil, nil)
	b.Process("ñ", true) // 2-byte UTF-8, one rune

	if !b.Backspace() {
		t.Fatal("Backspace() = false, want true (buffer held a code point)")
	}
	if b.Peek() != "" {
		t.Errorf("Peek() = %q, want empty after removing sole code point", b.Peek())
	}
	if b.IsComposing() {
		t.Error("expected composing=false once buffer emptied by backspace")
	}
}

func TestBackspaceOnEmptyBufferReturnsFalse(t *testing.T) {
	b := New(50*time.Millisecond, nil, nil)
	if b.Backspace() {
		t.Error("Backspace() on empty buffer = true, want false")
	}
}

func TestBackspacePartialComposition(t *testing.T) {
	b := New(50*time.Millisecond, nil, nil)
	b.Process("ab", true) // two ASCII runes appended verbatim as IME text

	if !b.Backspace() {
		t.Fatal("expected Backspace to succeed")
	}
	if got := b.Peek(); got != "a" {
		t.Errorf("Peek() = %q, want %q", got, "a")
	}
	if !b.IsComposing() {
		t.Error("expected buffer still composing with one rune left")
	}
}

func TestFlushIsIdempotentOnEmptyBuffer(t *testing.T) {
	var flushed []string
	b := New(50*time.Millisecond, func(s string) { flushed = append(flushed, s) }, nil)

	if got := b.Flush(); got != "" {
		t.Errorf("Flush() on empty buffer = %q, want empty", got)
	}
	if len(flushed) != 0 {
		t.Errorf("expected no flush callback on empty buffer, got %v", flushed)
	}
}

func TestClearDiscardsWithoutEmitting(t *testing.T) {
	var flushed []string
	b := New(50*time.Millisecond, func(s string) { flushed = append(flushed, s) }, nil)

	b.Process("中文", true)
	b.Clear()

	if b.IsComposing() || b.Peek() != "" {
		t.Error("expected Clear to empty the buffer")
	}
	if len(flushed) != 0 {
		t.Errorf("Clear must not emit, got %v", flushed)
	}
	if b.TimerC() != nil {
		t.Error("expected Clear to disarm the timer")
	}
}

func TestExplicitFlushReturnsAndEmitsSameText(t *testing.T) {
	var flushed []string
	b := New(50*time.Millisecond, func(s string) { flushed = append(flushed, s) }, nil)

	b.Process("한글", true)
	got := b.Flush()

	if got != "한글" {
		t.Errorf("Flush() returned %q, want %q", got, "한글")
	}
	if len(flushed) != 1 || flushed[0] != "한글" {
		t.Fatalf("flush sink got %v, want [한글]", flushed)
	}
}

func TestSinkPanicDoesNotCorruptState(t *testing.T) {
	b := New(50*time.Millisecond, func(string) { panic("boom") }, nil)
	b.Process("中", true)

	b.Flush() // must not propagate the panic

	if b.IsComposing() {
		t.Error("expected buffer to be idle after flush even if sink panicked")
	}
}

func TestEachIMEChunkRearmsTimerFreshly(t *testing.T) {
	b := New(30*time.Millisecond, nil, nil)

	b.Process("a", true)
	first := b.TimerC()
	time.Sleep(5 * time.Millisecond)
	b.Process("b", true)
	second := b.TimerC()

	if first == second {
		t.Error("expected a freshly armed timer channel on each IME chunk")
	}
}
