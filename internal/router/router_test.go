package router

import "testing"

type fakeBuffer struct {
	flushed      int
	backspaceRes bool
	backspaceN   int
}

func (f *fakeBuffer) Flush() string {
	f.flushed++
	return ""
}

func (f *fakeBuffer) Backspace() bool {
	f.backspaceN++
	return f.backspaceRes
}

func collecting() (Forwarder, *[][]byte) {
	var got [][]byte
	return func(p []byte) (int, error) {
		cp := append([]byte(nil), p...)
		got = append(got, cp)
		return len(p), nil
	}, &got
}

func TestInterruptFlushesAndForwards(t *testing.T) {
	buf := &fakeBuffer{}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	consumed := r.Handle([]byte{0x03})

	if !consumed {
		t.Fatal("expected interrupt to be consumed by router")
	}
	if buf.flushed != 1 {
		t.Errorf("flushed = %d, want 1", buf.flushed)
	}
	if len(*got) != 1 || (*got)[0][0] != 0x03 {
		t.Errorf("forwarded = %v, want [[0x03]]", *got)
	}
}

func TestEOFFlushesAndForwards(t *testing.T) {
	buf := &fakeBuffer{}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	if !r.Handle([]byte{0x04}) {
		t.Fatal("expected EOF to be consumed")
	}
	if buf.flushed != 1 || len(*got) != 1 {
		t.Errorf("flushed=%d forwarded=%v", buf.flushed, *got)
	}
}

func TestEnterFlushesAndForwardsBothVariants(t *testing.T) {
	for _, b := range []byte{0x0D, 0x0A} {
		buf := &fakeBuffer{}
		fwd, got := collecting()
		r := New(buf, fwd, nil)

		if !r.Handle([]byte{b}) {
			t.Fatalf("expected enter byte %#x to be consumed", b)
		}
		if buf.flushed != 1 || len(*got) != 1 {
			t.Errorf("byte %#x: flushed=%d forwarded=%v", b, buf.flushed, *got)
		}
	}
}

func TestBackspaceAbsorbedDoesNotForward(t *testing.T) {
	buf := &fakeBuffer{backspaceRes: true}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	if !r.Handle([]byte{0x7F}) {
		t.Fatal("expected backspace to be consumed")
	}
	if buf.backspaceN != 1 {
		t.Errorf("backspaceN = %d, want 1", buf.backspaceN)
	}
	if len(*got) != 0 {
		t.Errorf("expected no forward when buffer absorbed backspace, got %v", *got)
	}
}

func TestBackspaceNotAbsorbedForwards(t *testing.T) {
	buf := &fakeBuffer{backspaceRes: false}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	if !r.Handle([]byte{0x08}) {
		t.Fatal("expected backspace to be consumed by router")
	}
	if len(*got) != 1 || (*got)[0][0] != 0x08 {
		t.Errorf("forwarded = %v, want [[0x08]]", *got)
	}
}

func TestEscapeSequenceFlushesAndForwardsWholeChunk(t *testing.T) {
	buf := &fakeBuffer{}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	chunk := []byte{0x1B, '[', 'A'} // arrow-up CSI sequence
	if !r.Handle(chunk) {
		t.Fatal("expected escape sequence to be consumed")
	}
	if buf.flushed != 1 {
		t.Errorf("flushed = %d, want 1", buf.flushed)
	}
	if len(*got) != 1 || len((*got)[0]) != 3 {
		t.Errorf("forwarded = %v, want the whole 3-byte chunk", *got)
	}
}

func TestOrdinaryTextFallsThrough(t *testing.T) {
	buf := &fakeBuffer{}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	if r.Handle([]byte("hello")) {
		t.Fatal("expected ordinary text to fall through, not be consumed")
	}
	if buf.flushed != 0 || len(*got) != 0 {
		t.Errorf("expected no buffer/forward activity, got flushed=%d forwarded=%v", buf.flushed, *got)
	}
}

func TestSingleRegularByteFallsThrough(t *testing.T) {
	buf := &fakeBuffer{}
	fwd, got := collecting()
	r := New(buf, fwd, nil)

	if r.Handle([]byte{'a'}) {
		t.Fatal("expected a plain ASCII byte to fall through")
	}
	if buf.flushed != 0 || len(*got) != 0 {
		t.Errorf("expected no side effects, got flushed=%d forwarded=%v", buf.flushed, *got)
	}
}
