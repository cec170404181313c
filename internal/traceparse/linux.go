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

package traceparse

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/classify"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// linuxSyscallNames is the strace syscall set: the Linux tracer driver's
// `-e trace=` argument is built from it, and the dispatch switch below has
// a case for each of these names.
var linuxSyscallNames = []string{
	"open",
	"openat",
	"execve",
	"chdir",
	"clone",
	"fork",
	"vfork",
	"rename",
	"exit_group",
	"stat64",
}

// LinuxSyscallNames returns the syscalls the strace driver must request
// with `-e trace=`, in the order linuxSyscallNames lists them.
func LinuxSyscallNames() []string {
	out := make([]string, len(linuxSyscallNames))
	copy(out, linuxSyscallNames)
	return out
}

const straceUnfinishedSuffix = " <unfinished ...>"

// The compiled patterns the strace grammar needs. Keeping them package-level MustCompile values, named after the
// original tool's RE_* constants, is the same layout etrace's
// internal/strace package uses for its own regex tables.
var (
	reStraceHeader     = regexp.MustCompile(`^(\d+)\s+([^\(]+)\((.+?)\)\s+= (.+)$`)
	reStraceUnfinished = regexp.MustCompile(`^(\d+)\s+([^\(]+).*$`)
	reStraceResumed    = regexp.MustCompile(`^(\d+)\s+<\.\.\. ([^ ]+) resumed> (.+)$`)
	reStraceSignal     = regexp.MustCompile(`^\d+\s+--- SIG[A-Z]+ .+ ---`)
	reStraceKilled     = regexp.MustCompile(`^(\d+)\s+\+\+\+ killed by ([A-Z]+) \+\+\+$`)
	reStraceUnavail    = regexp.MustCompile(`\)\s+= \? <unavailable>$`)

	reStraceChdirArg = regexp.MustCompile(`^"(.+?)"$`)
	reStraceExecve   = regexp.MustCompile(`^"(.+?)", \[.+?\], \[.+?\]$`)
	reStraceOpen2    = regexp.MustCompile(`^"(.*?)", ([A-Z_|]+)$`)
	reStraceOpen3    = regexp.MustCompile(`^"(.*?)", ([A-Z_|]+), (\d+)$`)
	reStraceRename   = regexp.MustCompile(`^"(.+?)", "(.+?)"$`)
)

// straceParser implements the strace record grammar: a per-process cwd
// state machine fed by pid fn(args) = result header lines, with unfinished
// + resumed call stitching via a keyed stash.
type straceParser struct {
	ctx        *ProcessContext
	classifier classify.PathClassifier
	result     *TraceResult
	pending    map[straceKey]string
}

type straceKey struct {
	pid string
	fn  string
}

// NewStraceParser builds a parser ready to consume a strace log already
// carrying its synthetic initial chdir line.
func NewStraceParser(classifier classify.PathClassifier) *straceParser {
	return &straceParser{
		ctx:        NewProcessContext(),
		classifier: classifier,
		result:     newTraceResult(),
		pending:    map[straceKey]string{},
	}
}

// ParseStrace reads every line of an strace log and returns the resulting
// existent/non-existent path sets, realpath-resolved.
func ParseStrace(r io.Reader, classifier classify.PathClassifier) (*TraceResult, error) {
	p := NewStraceParser(classifier)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := p.onLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	return p.result.Finalize()
}

func (p *straceParser) onLine(raw string) error {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil
	}
	if reStraceSignal.MatchString(line) {
		return nil
	}

	if m := reStraceKilled.FindStringSubmatch(line); m != nil {
		pid, err := strconv.Atoi(m[1])
		if err != nil {
			return tracerr.Wrap(tracerr.KindLogParseError, err)
		}
		p.ctx.Exit(pid)
		return nil
	}

	if strings.HasSuffix(line, straceUnfinishedSuffix) {
		line = strings.TrimSuffix(line, straceUnfinishedSuffix)
		m := reStraceUnfinished.FindStringSubmatch(line)
		if m == nil {
			return tracerr.New(tracerr.KindLogParseError, "malformed unfinished call: %q", raw)
		}
		p.pending[straceKey{pid: m[1], fn: strings.TrimSpace(m[2])}] = line
		return nil
	}

	if reStraceUnavail.MatchString(line) {
		// A pending call was canceled, typically because its process was
		// killed. Nothing more to stitch.
		return nil
	}

	if m := reStraceResumed.FindStringSubmatch(line); m != nil {
		key := straceKey{pid: m[1], fn: m[2]}
		prefix, ok := p.pending[key]
		if !ok {
			return tracerr.New(tracerr.KindLogParseError, "resumed call with no pending match: %q", raw)
		}
		delete(p.pending, key)
		line = prefix + m[3]
	}

	m := reStraceHeader.FindStringSubmatch(line)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "unrecognized strace line: %q", raw)
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	fn := m[2]
	args := m[3]
	result := m[4]
	return p.dispatch(pid, fn, args, result)
}

func (p *straceParser) dispatch(pid int, fn, args, result string) error {
	switch fn {
	case "chdir":
		return p.handleChdir(pid, args, result)
	case "clone":
		return p.handleClone(pid, result)
	case "execve":
		return p.handleExecve(pid, args, result)
	case "exit_group":
		p.ctx.Exit(pid)
		return nil
	case "fork", "vfork":
		return p.handleClone(pid, result)
	case "open", "openat":
		return p.handleOpen(pid, args, result)
	case "rename":
		return p.handleRename(pid, args, result)
	case "stat64":
		// stat64 never mutates a file's existence and the parser does not
		// need its target, unlike the original which asserts on it as an
		// "unhandled" placeholder left for a future syscall addition.
		return nil
	default:
		return tracerr.New(tracerr.KindUnknownSyscall, "%s", fn)
	}
}

func (p *straceParser) handleChdir(pid int, args, result string) error {
	if !strings.HasPrefix(result, "0") {
		return tracerr.New(tracerr.KindLogParseError, "chdir failed unexpectedly for pid %d: %s", pid, result)
	}
	m := reStraceChdirArg.FindStringSubmatch(args)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed chdir args: %q", args)
	}
	if _, ok := p.ctx.Cwd(pid); !ok {
		// The synthetic initial chdir line establishes pid's first cwd.
		p.ctx.Start(pid, m[1])
		return nil
	}
	return p.ctx.Chdir(pid, m[1])
}

func (p *straceParser) handleClone(pid int, result string) error {
	if result == "? ERESTARTNOINTR (To be restarted)" {
		return nil
	}
	child, err := strconv.Atoi(strings.TrimSpace(result))
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	return p.ctx.Fork(pid, child)
}

func (p *straceParser) handleExecve(pid int, args, result string) error {
	m := reStraceExecve.FindStringSubmatch(args)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed execve args: %q", args)
	}
	return p.handleFile(pid, m[1], result)
}

func (p *straceParser) handleOpen(pid int, args, result string) error {
	m := reStraceOpen3.FindStringSubmatch(args)
	if m == nil {
		m = reStraceOpen2.FindStringSubmatch(args)
	}
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed open args: %q", args)
	}
	flags := m[2]
	if strings.Contains(flags, "O_DIRECTORY") {
		return nil
	}
	return p.handleFile(pid, m[1], result)
}

func (p *straceParser) handleRename(pid int, args, result string) error {
	m := reStraceRename.FindStringSubmatch(args)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed rename args: %q", args)
	}
	if err := p.handleFile(pid, m[1], result); err != nil {
		return err
	}
	return p.handleFile(pid, m[2], result)
}

func (p *straceParser) handleFile(pid int, filepath, result string) error {
	if strings.HasPrefix(result, "-1") {
		return nil
	}
	resolved, err := p.ctx.Resolve(pid, filepath)
	if err != nil {
		return err
	}
	p.result.record(resolved, p.classifier)
	return nil
}
