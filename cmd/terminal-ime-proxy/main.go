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

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/d-init-d/terminal-ime-proxy/internal/compose"
	"github.com/d-init-d/terminal-ime-proxy/internal/supervisor"
	"github.com/d-init-d/terminal-ime-proxy/internal/trace"
)

var (
	debug      bool
	timeoutArg string
)

var rootCmd = &cobra.Command{
	Use:           "terminal-ime-proxy <command> [args...]",
	Short:         "Coalesce IME composition bursts before they reach a child terminal program",
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `terminal-ime-proxy spawns <command> under a pseudo-terminal and sits
between it and the controlling terminal. Bursts of input classified as
input-method-editor output are buffered until an idle gap closes the
composition, then forwarded as one chunk; everything else passes straight
through.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "trace every classification, buffer mutation, and PTY lifecycle event to stderr")
	rootCmd.Flags().StringVarP(&timeoutArg, "timeout", "t", strconv.Itoa(int(compose.DefaultTimeout/time.Millisecond)), "idle gap in milliseconds before a composition is flushed; invalid values fall back to the default")
	// Stop parsing flags at the first positional argument, so a flag meant
	// for the child command (e.g. "terminal-ime-proxy bash -c 'ls -la'")
	// is never mistaken for one of ours.
	rootCmd.Flags().SetInterspersed(false)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	var sink trace.Sink = trace.NopSink{}
	if debug {
		sink = trace.NewStderrSink(os.Stderr)
	}

	timeout := compose.DefaultTimeout
	if ms, err := strconv.Atoi(timeoutArg); err == nil && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	code, err := supervisor.Run(supervisor.Config{
		Command: args,
		Timeout: timeout,
		Sink:    sink,
	})
	if err != nil {
		return err
	}
	os.Exit(code)
	return nil
}
