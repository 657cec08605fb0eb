// Package router inspects a raw input chunk for special keys — interrupt,
// EOF, backspace, enter, and escape-introduced sequences — before the
// composition buffer ever sees it. It does not parse escape sequences into
// named keys; it only needs to recognize that a chunk is one, so the whole
// thing can be forwarded to the child verbatim.
package router

import "github.com/d-init-d/terminal-ime-proxy/internal/trace"

const (
	byteInterrupt    = 0x03
	byteEOF          = 0x04
	byteBackspaceDel = 0x7F
	byteBackspaceBS  = 0x08
	byteEnterCR      = 0x0D
	byteEnterLF      = 0x0A
	byteEscape       = 0x1B
)

// Buffer is the subset of *compose.Buffer the router needs. Declared locally
// to keep router free of a direct dependency on compose's concrete type.
type Buffer interface {
	Flush() string
	Backspace() bool
}

// Forwarder writes bytes to the child, verbatim, on the router's behalf.
type Forwarder func(p []byte) (int, error)

// Router decides, for each raw input chunk, whether it is a special key the
// proxy must act on directly or ordinary text that should fall through to
// classification and composition.
type Router struct {
	buffer  Buffer
	forward Forwarder
	sink    trace.Sink
}

// New constructs a Router. sink may be nil, in which case a no-op sink is
// used.
func New(buffer Buffer, forward Forwarder, sink trace.Sink) *Router {
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Router{buffer: buffer, forward: forward, sink: sink}
}

// Handle inspects chunk and returns true if it fully consumed it (acted on a
// special key, possibly after forwarding to the child). A false return means
// the caller must classify chunk and hand it to the buffer itself.
func (r *Router) Handle(chunk []byte) bool {
	if len(chunk) == 1 {
		switch chunk[0] {
		case byteInterrupt:
			r.sink.Record("router", "interrupt", nil)
			r.buffer.Flush()
			r.forward(chunk)
			return true
		case byteEOF:
			r.sink.Record("router", "eof", nil)
			r.buffer.Flush()
			r.forward(chunk)
			return true
		case byteBackspaceDel, byteBackspaceBS:
			if r.buffer.Backspace() {
				r.sink.Record("router", "backspace_absorbed", nil)
				return true
			}
			r.sink.Record("router", "backspace_forwarded", nil)
			r.forward(chunk)
			return true
		case byteEnterCR, byteEnterLF:
			r.sink.Record("router", "enter", nil)
			r.buffer.Flush()
			r.forward(chunk)
			return true
		}
	}

	if len(chunk) > 0 && chunk[0] == byteEscape {
		r.sink.Record("router", "escape_sequence", map[string]any{"bytes": len(chunk)})
		r.buffer.Flush()
		r.forward(chunk)
		return true
	}

	return false
}
