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

// Package supervisor wires the classifier, composition buffer, special-key
// router, and PTY bridge into one event loop: raw stdin in, classified and
// composed text out to the child, child output straight back to stdout.
package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/d-init-d/terminal-ime-proxy/internal/classify"
	"github.com/d-init-d/terminal-ime-proxy/internal/compose"
	"github.com/d-init-d/terminal-ime-proxy/internal/ptybridge"
	"github.com/d-init-d/terminal-ime-proxy/internal/router"
	"github.com/d-init-d/terminal-ime-proxy/internal/trace"
)

const stdinChunk = 4096

// Config parameterizes one supervised run.
type Config struct {
	Command []string
	Dir     string
	Env     []string
	Timeout time.Duration
	Sink    trace.Sink

	// In/Out default to os.Stdin/os.Stdout; overridable for tests.
	In  *os.File
	Out io.Writer
}

// Run spawns cfg.Command under a PTY, puts the controlling terminal into raw
// mode, and bridges stdin/stdout to the child until it exits or a fatal
// signal arrives. It returns the child's exit code.
func Run(cfg Config) (int, error) {
	if len(cfg.Command) == 0 {
		return -1, fmt.Errorf("supervisor: no command given")
	}
	if cfg.Sink == nil {
		cfg.Sink = trace.NopSink{}
	}
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	var out io.Writer = cfg.Out
	if out == nil {
		out = os.Stdout
	}

	size := terminalSize(in)

	bridge, err := ptybridge.Start(cfg.Command[0], cfg.Command[1:], cfg.Dir, cfg.Env, size, ptybridge.WithTracer(cfg.Sink))
	if err != nil {
		return -1, err
	}

	restore, err := enterRawMode(in)
	if err != nil {
		_ = bridge.Close()
		return -1, err
	}
	defer restore()

	sup := &supervisor{
		bridge: bridge,
		out:    out,
		sink:   cfg.Sink,
	}
	sup.buffer = compose.New(cfg.Timeout, sup.onFlush, sup.onRegular, compose.WithTracer(cfg.Sink))
	sup.router = router.New(sup.buffer, bridge.Write, cfg.Sink)

	return sup.loop(in)
}

type supervisor struct {
	bridge *ptybridge.Bridge
	buffer *compose.Buffer
	router *router.Router
	out    io.Writer
	sink   trace.Sink
}

func (s *supervisor) onFlush(text string) {
	_, _ = s.bridge.Write([]byte(text))
}

func (s *supervisor) onRegular(text string) {
	_, _ = s.bridge.Write([]byte(text))
}

// loop runs the single-threaded event loop described by the proxy's
// concurrency model: a select over stdin chunks, PTY output chunks, the
// composition timer, terminal resize notifications, and child exit.
func (s *supervisor) loop(in *os.File) (int, error) {
	defer s.teardown()

	stdinCh, stdinErrCh := readChunks(in, stdinChunk)
	resizeCh := watchResize(in)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	exitCh := make(chan int, 1)
	go func() {
		code, _ := s.bridge.Wait()
		exitCh <- code
	}()

	ptyOutput := s.bridge.Output()

	for {
		select {
		case chunk, ok := <-stdinCh:
			if !ok {
				stdinCh = nil
				continue
			}
			s.handleInput(chunk)

		case err := <-stdinErrCh:
			s.sink.Record("supervisor", "stdin_closed", map[string]any{"err": errString(err)})
			stdinCh = nil

		case chunk, ok := <-ptyOutput:
			if !ok {
				ptyOutput = nil
				continue
			}
			_, _ = s.out.Write(chunk)

		case <-s.buffer.TimerC():
			s.buffer.TimerFired()

		case size, ok := <-resizeCh:
			if !ok {
				resizeCh = nil
				continue
			}
			if err := s.bridge.Resize(size.Cols, size.Rows); err != nil {
				s.sink.Record("supervisor", "resize_failed", map[string]any{"err": err.Error()})
			}

		case sig := <-sigCh:
			s.sink.Record("supervisor", "fatal_signal", map[string]any{"signal": sig.String()})
			return fatalSignalExitCode(sig), nil

		case code := <-exitCh:
			return code, nil
		}
	}
}

// fatalSignalExitCode follows the POSIX shell convention of 128+signum so
// callers can tell a fatal-signal exit from a child-reported exit code.
func fatalSignalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return -1
}

func (s *supervisor) handleInput(chunk []byte) {
	if s.router.Handle(chunk) {
		return
	}
	text := string(chunk)
	result := classify.Classify(text)
	s.sink.Record("classify", "classify", map[string]any{"verdict": result.String()})
	s.buffer.Process(text, result == classify.IME)
}

func (s *supervisor) teardown() {
	s.buffer.Clear()
	_ = s.bridge.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func readChunks(f *os.File, size int) (<-chan []byte, <-chan error) {
	out := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		buf := make([]byte, size)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				out <- chunk
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()
	return out, errc
}

func watchResize(in *os.File) <-chan ptybridge.Size {
	ch := make(chan ptybridge.Size, 1)
	sigCh := make(chan os.Signal, 1)
	notifyResize(sigCh)
	go func() {
		defer close(ch)
		for range sigCh {
			ch <- terminalSize(in)
		}
	}()
	return ch
}

func notifyResize(sigCh chan os.Signal) {
	signal.Notify(sigCh, syscall.SIGWINCH)
}

func terminalSize(f *os.File) ptybridge.Size {
	cols, rows, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return ptybridge.DefaultSize
	}
	return ptybridge.Size{Cols: cols, Rows: rows}
}

// enterRawMode puts f into raw mode and returns a restore function that is
// safe to call multiple times. Callers pair this with their own deferred
// restore (and loop's SIGINT/SIGTERM handling, which triggers teardown and
// returns from the event loop) so the terminal is restored whether the run
// ends via child exit, fatal signal, or panic.
func enterRawMode(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("supervisor: raw mode: %w", err)
	}

	restored := false
	restore := func() {
		if restored {
			return
		}
		restored = true
		_ = term.Restore(fd, oldState)
	}

	return restore, nil
}
