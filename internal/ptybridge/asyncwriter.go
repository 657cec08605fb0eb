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

package ptybridge

import (
	"io"
	"runtime"
	"sync"
)

// asyncWriter wraps an io.Writer so that writes within buffer capacity
// return immediately even if the underlying writer (here, the PTY master)
// is momentarily slow to drain, matching the bridge's non-blocking write
// contract. A write that overruns the buffer blocks only until the
// background drain goroutine has made room.
type asyncWriter struct {
	upstream io.Writer
	cond     *sync.Cond
	buffer   []byte
	index    int

	notify chan struct{}
	err    error
}

func newAsyncWriter(upstream io.Writer, capacity int) *asyncWriter {
	w := &asyncWriter{
		upstream: upstream,
		cond:     sync.NewCond(&sync.Mutex{}),
		buffer:   make([]byte, capacity),
		notify:   make(chan struct{}, 1),
	}
	go w.drain()
	return w
}

func (w *asyncWriter) drain() {
	sent := 0
	for range w.notify {
		w.cond.L.Lock()
		next := w.index
		w.cond.L.Unlock()

		_, err := w.upstream.Write(w.buffer[sent:next])
		sent = next
		if err != nil {
			w.cond.L.Lock()
			w.err = err
			w.cond.L.Unlock()
			return
		}

		w.cond.L.Lock()
		if w.index == next {
			w.index = 0
			sent = 0
		}
		w.cond.Signal()
		w.cond.L.Unlock()
	}
}

func (w *asyncWriter) Write(p []byte) (int, error) {
	w.cond.L.Lock()
	if w.err != nil {
		err := w.err
		w.cond.L.Unlock()
		return 0, err
	}
	n := copy(w.buffer[w.index:], p)
	w.index += n
	w.cond.L.Unlock()

	select {
	case w.notify <- struct{}{}:
		if len(p) > n {
			runtime.Gosched()
			more, err := w.Write(p[n:])
			return n + more, err
		}
		return n, nil
	default:
		if len(p) > n {
			w.cond.L.Lock()
			for w.index == len(w.buffer) {
				w.cond.Wait()
			}
			w.cond.L.Unlock()
			more, err := w.Write(p[n:])
			return n + more, err
		}
		return n, nil
	}
}

// stop halts the drain goroutine without touching the upstream writer,
// which the Bridge owns and closes itself.
func (w *asyncWriter) stop() {
	w.cond.L.Lock()
	if w.err == nil {
		w.err = io.EOF
	}
	w.cond.L.Unlock()
	close(w.notify)
	w.cond.Broadcast()
}
