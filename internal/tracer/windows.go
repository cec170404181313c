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

package tracer

import (
	"os"
	"os/exec"

	"github.com/anonymouse64/traceinputs/internal/pathutil"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// ntKernelLoggerGUID is the GUID for SystemTraceControlGuid. "NT Kernel
// Logger" is localized in logman's own display strings, so the session is
// started/stopped by name but the provider is always addressed by this
// GUID.
const ntKernelLoggerGUID = "{9e814aad-3204-11d2-9a82-006008a86939}"

// WindowsDriver drives the ETW "NT Kernel Logger" session via
// logman.exe/tracerpt.exe.
type WindowsDriver struct {
	Opts     Options
	lookPath func(string) (string, error)
}

// NewWindowsDriver builds a WindowsDriver.
func NewWindowsDriver(opts Options) *WindowsDriver {
	return &WindowsDriver{Opts: opts, lookPath: exec.LookPath}
}

// GenTrace starts the kernel trace session, runs cmd, stops the session
// (even on child failure), then converts the .etl to CSV at logname.
func (d *WindowsDriver) GenTrace(cmd []string, cwd string, logname string) (int, error) {
	log := d.Opts.logger()
	etl := logname + ".etl"

	logmanPath, err := d.lookPath("logman.exe")
	if err != nil {
		return 1, tracerr.New(tracerr.KindTracerSpawnFailed, "cannot find logman.exe: %s", err)
	}
	tracerptPath, err := d.lookPath("tracerpt.exe")
	if err != nil {
		return 1, tracerr.New(tracerr.KindTracerSpawnFailed, "cannot find tracerpt.exe: %s", err)
	}

	start := exec.Command(logmanPath,
		"start", "NT Kernel Logger",
		"-p", ntKernelLoggerGUID,
		"(process,img,file,fileio)",
		"-o", etl,
		"-ets",
	)
	if d.Opts.Verbose {
		start.Stdout, start.Stderr = os.Stdout, os.Stderr
	}
	log.Info("starting ETW session", "args", start.Args)
	if err := start.Run(); err != nil {
		return 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
	}

	tail := newTailBuffer(100)
	child := exec.Command(cmd[0], cmd[1:]...)
	child.Dir = cwd
	child.Env = d.Opts.Env
	if d.Opts.Verbose {
		child.Stdout, child.Stderr = os.Stdout, os.Stderr
	} else {
		child.Stdout, child.Stderr = tail, tail
	}
	log.Info("running traced command", "args", cmd)
	childErr := child.Run()

	stop := exec.Command(logmanPath, "stop", "NT Kernel Logger", "-ets")
	if d.Opts.Verbose {
		stop.Stdout, stop.Stderr = os.Stdout, os.Stderr
	}
	if err := stop.Run(); err != nil {
		return 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
	}

	if childErr != nil && !d.Opts.Verbose {
		printTail(tail)
	}

	// tracerpt localizes the CSV "Type" column header unless the thread
	// locale is pinned to invariant first.
	if err := pathutil.SetInvariantLocale(); err != nil {
		return 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
	}

	convert := exec.Command(tracerptPath,
		"-l", etl,
		"-o", logname,
		"-gmt",
		"-y",
		"-of", "CSV",
	)
	if d.Opts.Verbose {
		convert.Stdout, convert.Stderr = os.Stdout, os.Stderr
	}
	log.Info("converting ETW trace", "args", convert.Args)
	if err := convert.Run(); err != nil {
		return 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
	}

	if childErr != nil {
		return exitCodeOf(childErr), nil
	}
	return 0, nil
}
