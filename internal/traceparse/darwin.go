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
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/classify"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
	"github.com/snapcore/snapd/osutil"
)

// darwinODirectory is the value of O_DIRECTORY on Darwin
// (golang.org/x/sys/unix.O_DIRECTORY, build-tagged to darwin only and thus
// unavailable from this platform-portable parser, which is exercised by
// tests on every host). The D script already masks on this exact bit.
const darwinODirectory = 0x100000

var (
	reDtraceHeader = regexp.MustCompile(`^\d+ (\d+):(\d+) ([a-zA-Z_\-]+)\((.*?)\) = (.+)$`)
	reDtraceChdir  = regexp.MustCompile(`^"(.+?)"$`)
	reDtraceOpen   = regexp.MustCompile(`^"(.+?)", (\d+), (\d+)$`)
	reDtraceRename = regexp.MustCompile(`^"(.+?)", "(.+?)"$`)
)

// dtraceParser implements the dtrace record grammar: index ppid:pid
// fn(args) = result, with events already sorted by logindex by the tracer
// driver (see internal/tracer's _sort_log equivalent) before reaching here.
type dtraceParser struct {
	ctx        *ProcessContext
	classifier classify.PathClassifier
	result     *TraceResult
	logger     *slog.Logger
}

// NewDtraceParser builds a parser for a log whose D script already
// initialized the tracked root pid's cwd via a synthetic chdir record.
func NewDtraceParser(classifier classify.PathClassifier, logger *slog.Logger) *dtraceParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &dtraceParser{
		ctx:        NewProcessContext(),
		classifier: classifier,
		result:     newTraceResult(),
		logger:     logger,
	}
}

// ParseDtrace reads a sorted dtrace log and returns the resulting
// existent/non-existent path sets, realpath-resolved.
func ParseDtrace(r io.Reader, classifier classify.PathClassifier, logger *slog.Logger) (*TraceResult, error) {
	p := NewDtraceParser(classifier, logger)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := p.onLine(line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	return p.result.Finalize()
}

func (p *dtraceParser) onLine(line string) error {
	m := reDtraceHeader.FindStringSubmatch(line)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "unrecognized dtrace line: %q", line)
	}
	ppid, err := strconv.Atoi(m[1])
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	pid, err := strconv.Atoi(m[2])
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	fn := strings.ReplaceAll(m[3], "-", "_")
	args := m[4]
	result := m[5]

	switch fn {
	case "dtrace_BEGIN":
		return nil
	case "proc_start":
		if result != "0" {
			return tracerr.New(tracerr.KindLogParseError, "proc_start for pid %d did not return 0: %s", pid, result)
		}
		return p.ctx.Fork(ppid, pid)
	case "proc_exit":
		p.ctx.Exit(pid)
		return nil
	case "chdir":
		return p.handleChdir(pid, args, result)
	case "open", "open_nocancel":
		return p.handleOpen(pid, args, result)
	case "rename":
		return p.handleRename(pid, args, result)
	default:
		// Unknown probe names are logged and ignored on this flavor, the
		// same tolerant fallback ETW events use; only the strace parser
		// treats an unknown syscall name as fatal.
		p.logger.Debug("ignoring dtrace probe", "fn", fn)
		return nil
	}
}

func (p *dtraceParser) handleChdir(pid int, args, result string) error {
	if !strings.HasPrefix(result, "0") {
		return tracerr.New(tracerr.KindLogParseError, "chdir failed unexpectedly for pid %d: %s", pid, result)
	}
	m := reDtraceChdir.FindStringSubmatch(args)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed chdir args: %q", args)
	}
	if _, ok := p.ctx.Cwd(pid); !ok {
		p.ctx.Start(pid, m[1])
		return nil
	}
	return p.ctx.Chdir(pid, m[1])
}

func (p *dtraceParser) handleOpen(pid int, args, result string) error {
	m := reDtraceOpen.FindStringSubmatch(args)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed open args: %q", args)
	}
	flag, err := strconv.Atoi(m[2])
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	if flag&darwinODirectory == darwinODirectory {
		return nil
	}
	return p.handleFile(pid, m[1], result)
}

func (p *dtraceParser) handleRename(pid int, args, result string) error {
	m := reDtraceRename.FindStringSubmatch(args)
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed rename args: %q", args)
	}
	if err := p.handleFile(pid, m[1], result); err != nil {
		return err
	}
	return p.handleFile(pid, m[2], result)
}

func (p *dtraceParser) handleFile(pid int, filepath, result string) error {
	if strings.HasPrefix(result, "-1") || strings.HasPrefix(result, "2") {
		return nil
	}
	resolved, err := p.ctx.Resolve(pid, filepath)
	if err != nil {
		return err
	}
	resolved = path.Clean(resolved)
	// open_nocancel(".", 0, 0) lines slip through the D script's own
	// filtering; catch them here the way the original parser does.
	if osutil.IsDirectory(resolved) {
		return nil
	}
	p.result.record(resolved, p.classifier)
	return nil
}
