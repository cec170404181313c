/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/anonymouse64/traceinputs/internal/tracer"
)

// dtraceHelperFlag marks a re-exec of this same binary into the sentinel-
// waiting helper stage DarwinDriver needs. It is deliberately not a
// go-flags option: the helper invocation is internal plumbing, never a
// user-facing subcommand.
const dtraceHelperFlag = "--dtrace-helper"

// dtraceHelperCommand builds the exec.Cmd for the helper stage by re-
// exec'ing this same binary under dtraceHelperFlag, the pattern
// cmd/etrace's apparmor-profile re-exec (syscall.Exec("/proc/self/exe", ...))
// already uses for "restart myself in a different mode".
func dtraceHelperCommand(cmd []string, cwd string, env []string) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	args := append([]string{self, dtraceHelperFlag, cwd}, cmd...)
	return &exec.Cmd{Path: self, Args: args, Env: env}, nil
}

// runDtraceHelper is the re-exec target: block until the arming handshake
// releases it, switch to cwd, and exec into cmd. It never returns.
func runDtraceHelper(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "dtrace helper: missing cwd or command")
		os.Exit(1)
	}
	cwd, cmd := args[0], args[1:]

	sentinel := make([]byte, len(tracer.HelperSentinel))
	if _, err := io.ReadFull(os.Stdin, sentinel); err != nil {
		fmt.Fprintf(os.Stderr, "dtrace helper: reading arming sentinel: %v\n", err)
		os.Exit(1)
	}

	if err := os.Chdir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "dtrace helper: chdir %s: %v\n", cwd, err)
		os.Exit(1)
	}

	path := cmd[0]
	if !filepath.IsAbs(path) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dtrace helper: %v\n", err)
			os.Exit(1)
		}
		path = resolved
	}

	if err := syscall.Exec(path, cmd, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "dtrace helper: exec %s: %v\n", path, err)
		os.Exit(1)
	}
}
