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
	"encoding/csv"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/snapcore/snapd/osutil"

	"github.com/anonymouse64/traceinputs/internal/classify"
	"github.com/anonymouse64/traceinputs/internal/pathutil"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// ETW CSV column indices. Columns past the fixed header (through "User
// Data") vary by event type; these are the ones the parser needs.
const (
	etwColEventName = 0
	etwColType      = 1
	etwColPID       = 9
	etwColChildPID  = 20
	etwColParentPID = 21
	etwColFilePath  = 25
	etwColProcName  = 26
)

var etwHeader = []string{
	"Event Name", "Type", "Event ID", "Version", "Channel", "Level",
	"Opcode", "Task", "Keyword", "PID", "TID", "Processor Number",
	"Instance ID", "Parent Instance ID", "Activity ID",
	"Related Activity ID", "Clock-Time", "Kernel(ms)", "User(ms)",
	"User Data",
}

var reEtwFilePath = regexp.MustCompile(`^"(.+)"$`)

// etwParser implements the ETW CSV record grammar emitted by tracerpt. It
// tracks the process tree rooted at the logman.exe-launching process rather
// than per-pid cwd, since ETW's FileIo_Create events already carry absolute
// (NT device) paths.
type etwParser struct {
	classifier classify.PathClassifier
	driveMap   *pathutil.DOSDriveMap
	result     *TraceResult
	logger     *slog.Logger

	tracked   map[int]bool
	sawHeader bool
}

// NewEtwParser builds a parser. driveMap must already be populated (see
// pathutil.BuildDOSDriveMap); it is constructed once per orchestrator run
// and passed in, never held globally.
func NewEtwParser(classifier classify.PathClassifier, driveMap *pathutil.DOSDriveMap, logger *slog.Logger) *etwParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &etwParser{
		classifier: classifier,
		driveMap:   driveMap,
		result:     newTraceResult(),
		logger:     logger,
		tracked:    map[int]bool{},
	}
}

// ParseEtw reads a tracerpt CSV log and returns the resulting
// existent/non-existent path sets, realpath-resolved.
func ParseEtw(r io.Reader, classifier classify.PathClassifier, driveMap *pathutil.DOSDriveMap, logger *slog.Logger) (*TraceResult, error) {
	p := NewEtwParser(classifier, driveMap, logger)
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, tracerr.Wrap(tracerr.KindLogParseError, err)
		}
		if err := p.onRecord(record); err != nil {
			return nil, err
		}
	}
	return p.result.Finalize()
}

func (p *etwParser) onRecord(raw []string) error {
	line := make([]string, len(raw))
	for i, v := range raw {
		line[i] = strings.TrimSpace(v)
	}

	if !p.sawHeader {
		if len(line) < len(etwHeader) {
			return tracerr.New(tracerr.KindLogParseError, "ETW header row too short: %v", line)
		}
		for i, want := range etwHeader {
			if line[i] != want {
				return tracerr.New(tracerr.KindLogParseError, "unexpected ETW header column %d: got %q want %q", i, line[i], want)
			}
		}
		p.sawHeader = true
		return nil
	}

	if len(line) <= etwColPID {
		return tracerr.New(tracerr.KindLogParseError, "ETW record too short: %v", line)
	}

	if strings.HasPrefix(line[etwColEventName], "{") {
		// GUID-keyed rows carry no useful information.
		return nil
	}

	pid, err := parseHexField(line[etwColPID])
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}

	eventName := line[etwColEventName]
	eventType := line[etwColType]
	// The dispatch key is the (Event Name, Type) pair joined with an
	// underscore, e.g. a row with Event Name "Process" and Type "DCStart"
	// dispatches as "Process_DCStart". Event Name alone is never a full key.
	key := eventName + "_" + eventType

	switch {
	case key == "Process_DCStart":
		return p.handleProcessDCStart(line)
	case key == "Process_End":
		p.handleProcessEnd(pid)
		return nil
	case key == "Process_Start":
		return p.handleProcessStart(pid, line)
	case key == "FileIo_Create" && p.tracked[pid]:
		return p.handleFileIoCreate(line)
	case eventName == "FileIo", eventName == "EventTrace", eventName == "Image", eventName == "Process", eventName == "SystemConfig":
		// The _Any fallback: no other event type under these names carries
		// a tracked file access.
		return nil
	default:
		p.logger.Debug("ignoring ETW event", "name", eventName, "type", eventType)
		return nil
	}
}

// handleProcessDCStart extracts the pid of the tool's own process by
// finding the logman.exe child this process tree's ancestor started: its
// parent pid is the tracing process and becomes the tracked root.
func (p *etwParser) handleProcessDCStart(line []string) error {
	if len(line) <= etwColProcName {
		return nil
	}
	if line[etwColProcName] == `"logman.exe"` {
		ppid, err := parseHexField(line[etwColParentPID])
		if err != nil {
			return tracerr.Wrap(tracerr.KindLogParseError, err)
		}
		p.tracked[ppid] = true
		p.logger.Info("found logman's parent", "pid", ppid)
	}
	return nil
}

func (p *etwParser) handleProcessEnd(pid int) {
	delete(p.tracked, pid)
}

func (p *etwParser) handleProcessStart(ppid int, line []string) error {
	if !p.tracked[ppid] {
		return nil
	}
	if len(line) <= etwColChildPID {
		return nil
	}
	if line[etwColProcName] == `"logman.exe"` {
		// The shutdown call for our own tracing session; not a tracked child.
		return nil
	}
	childPid, err := parseHexField(line[etwColChildPID])
	if err != nil {
		return tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	p.tracked[childPid] = true
	return nil
}

func (p *etwParser) handleFileIoCreate(line []string) error {
	if len(line) <= etwColFilePath {
		return nil
	}
	m := reEtwFilePath.FindStringSubmatch(line[etwColFilePath])
	if m == nil {
		return tracerr.New(tracerr.KindLogParseError, "malformed FileIo_Create path: %q", line[etwColFilePath])
	}
	dosPath, err := p.driveMap.ToDrive(m[1])
	if err != nil {
		return err
	}
	p.handleFile(strings.ToLower(dosPath))
	return nil
}

func (p *etwParser) handleFile(filepath string) {
	if p.classifier.Blacklisted(filepath) {
		return
	}
	if osutil.IsDirectory(filepath) {
		return
	}
	p.result.record(filepath, p.classifier)
}

func parseHexField(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
