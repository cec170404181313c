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
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/commands"
	"github.com/anonymouse64/traceinputs/internal/files"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// LinuxDriver drives strace. The syscall set traced comes from the caller
// (the orchestrator passes traceparse.LinuxSyscallNames() so the parser's
// dispatch table and the tracer's -e trace= argument never drift apart).
type LinuxDriver struct {
	Opts     Options
	Syscalls []string
	lookPath func(string) (string, error)
	execWait func(cmd *exec.Cmd) error
}

// NewLinuxDriver builds a LinuxDriver tracing the given syscall names.
func NewLinuxDriver(syscalls []string, opts Options) *LinuxDriver {
	return &LinuxDriver{
		Opts:     opts,
		Syscalls: syscalls,
		lookPath: exec.LookPath,
		execWait: func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// GenTrace runs cmd under strace, writing the raw trace to logname and
// prepending the synthetic initial-chdir line strace itself can't capture.
func (d *LinuxDriver) GenTrace(cmd []string, cwd string, logname string) (int, error) {
	log := d.Opts.logger()

	if err := files.EnsureFileIsDeleted(logname); err != nil {
		return 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
	}

	stracePath, err := d.lookPath("strace")
	if err != nil {
		return 1, tracerr.New(tracerr.KindTracerSpawnFailed, "cannot find an installed strace: %s", err)
	}

	args := []string{
		stracePath,
		"-f",
		"-e", "trace=" + strings.Join(d.Syscalls, ","),
		"-o", logname,
	}
	args = append(args, cmd...)

	c := &exec.Cmd{Path: stracePath, Args: args, Dir: cwd, Env: d.Opts.Env}
	if err := commands.AddSudoIfNeeded(c); err != nil {
		return 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
	}

	tail := newTailBuffer(100)
	if d.Opts.Verbose {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	} else {
		c.Stdout = tail
		c.Stderr = tail
	}

	log.Info("running strace", "args", c.Args)
	runErr := d.execWait(c)

	exitCode := 0
	if runErr != nil {
		exitCode = exitCodeOf(runErr)
		if !d.Opts.Verbose {
			printTail(tail)
		}
	}

	if err := prependSyntheticChdir(logname, cwd); err != nil {
		return exitCode, tracerr.Wrap(tracerr.KindLogParseError, err)
	}

	return exitCode, nil
}

// prependSyntheticChdir adds the `"<pid> chdir(\"<cwd>\") = 0\n"` line
// strace can't capture itself (the tracee's cwd at exec time), using the
// pid named in the first line of the log itself. That pid is whichever
// process happened to log first, not necessarily the tracee's root pid if
// a pre-existing process emits output first; preserved as-is rather than
// independently tracking the tracee's pid.
func prependSyntheticChdir(logname string, cwd string) error {
	raw, err := os.ReadFile(logname)
	if err != nil {
		return err
	}
	firstLine := string(raw)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	pid := strings.Fields(firstLine)
	if len(pid) == 0 {
		return tracerr.New(tracerr.KindLogParseError, "strace log %s has no lines to infer a pid from", logname)
	}
	synthetic := fmt.Sprintf("%s chdir(%q) = 0\n", pid[0], cwd)
	return os.WriteFile(logname, append([]byte(synthetic), raw...), 0644)
}

