/*
 * terminal-ime-proxy
 * Copyright 2026 d-init-d
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package ptybridge spawns a child process attached to a pseudo-terminal and
// bridges it to the proxy's event loop: a channel of output chunks, a
// write path that absorbs the write-through buffering an OS pty master
// needs, resize propagation, and exit reporting.
package ptybridge

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/d-init-d/terminal-ime-proxy/internal/trace"
)

// Size is the initial or updated terminal geometry.
type Size struct {
	Cols int
	Rows int
}

// DefaultSize is used when the controlling terminal's geometry can't be
// determined.
var DefaultSize = Size{Cols: 80, Rows: 24}

const (
	readChunk           = 4096
	writeBufferCapacity = 64 * 1024
)

// Bridge owns a child process spawned under a PTY.
type Bridge struct {
	cmd    *exec.Cmd
	master *os.File
	sink   trace.Sink

	output chan []byte
	writer *asyncWriter

	waitOnce sync.Once
	exitCode int
	waitErr  error
	waitDone chan struct{}
}

// Option configures a Bridge at construction.
type Option func(*Bridge)

// WithTracer attaches a trace sink; omit for the default no-op sink.
func WithTracer(sink trace.Sink) Option {
	return func(b *Bridge) { b.sink = sink }
}

// Start spawns command (with args) under a new PTY sized per size, with the
// given working directory and environment (an empty dir or a nil env inherit
// the current process's). The terminal type is always announced as xterm-256color,
// regardless of what the proxy's own controlling terminal reports, since the
// value only needs to name a terminfo entry the child understands.
func Start(command string, args []string, dir string, env []string, size Size, opts ...Option) (*Bridge, error) {
	if size.Cols <= 0 || size.Rows <= 0 {
		size = DefaultSize
	}

	cmd := exec.Command(command, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(append([]string{}, env...), "TERM=xterm-256color")

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(size.Cols), Rows: uint16(size.Rows)})
	if err != nil {
		return nil, fmt.Errorf("ptybridge: spawn %s: %w", command, err)
	}

	b := &Bridge{
		cmd:      cmd,
		master:   master,
		sink:     trace.NopSink{},
		output:   make(chan []byte, 64),
		waitDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.writer = newAsyncWriter(master, writeBufferCapacity)

	go b.readLoop()

	return b, nil
}

// Output returns the channel of child-produced byte chunks. The channel is
// closed once the child's PTY master returns EOF; readers should keep
// draining it until closed even after Wait unblocks, to avoid losing a final
// partial chunk.
func (b *Bridge) Output() <-chan []byte {
	return b.output
}

func (b *Bridge) readLoop() {
	defer close(b.output)
	buf := make([]byte, readChunk)
	for {
		n, err := b.master.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			b.output <- chunk
		}
		if err != nil {
			b.sink.Record("ptybridge", "read_closed", map[string]any{"err": err.Error()})
			return
		}
	}
}

// Write sends p to the PTY master through a bounded async buffer: it
// returns immediately once p is queued, even if the master is momentarily
// slow to drain, and only blocks the caller if the buffer itself is full.
func (b *Bridge) Write(p []byte) (int, error) {
	n, err := b.writer.Write(p)
	if err != nil {
		return n, fmt.Errorf("ptybridge: write: %w", err)
	}
	return n, nil
}

// Resize propagates a terminal geometry change to the child.
func (b *Bridge) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("ptybridge: invalid size %dx%d", cols, rows)
	}
	b.sink.Record("ptybridge", "resize", map[string]any{"cols": cols, "rows": rows})
	return pty.Setsize(b.master, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Wait blocks until the child exits and reports its exit code exactly once;
// subsequent calls replay the same result.
func (b *Bridge) Wait() (int, error) {
	b.waitOnce.Do(func() {
		err := b.cmd.Wait()
		if err == nil {
			b.exitCode = 0
			b.waitErr = nil
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			b.exitCode = exitErr.ExitCode()
			b.waitErr = nil
		} else {
			b.exitCode = -1
			b.waitErr = fmt.Errorf("ptybridge: wait: %w", err)
		}
		close(b.waitDone)
	})
	<-b.waitDone
	return b.exitCode, b.waitErr
}

// Close stops the write path, kills the child (SIGKILL via Process.Kill; the
// error from an already-exited child is ignored), and releases the PTY
// master. Safe to call after Wait.
func (b *Bridge) Close() error {
	b.writer.stop()
	if b.cmd.Process != nil {
		_ = b.cmd.Process.Kill()
	}
	return b.master.Close()
}
