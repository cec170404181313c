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
package traceparse_test

import (
	"bytes"
	"encoding/csv"

	. "gopkg.in/check.v1"

	"github.com/anonymouse64/traceinputs/internal/pathutil"
	"github.com/anonymouse64/traceinputs/internal/traceparse"
)

type etwSuite struct{}

var _ = Suite(&etwSuite{})

// etwRow pads a record out to at least 27 columns (through PROC_NAME) so
// tests can set only the columns they care about by index.
func etwRow(overrides map[int]string) []string {
	row := make([]string, 27)
	for i := range row {
		row[i] = ""
	}
	row[2] = "0"                                   // Event ID
	row[3] = "2"                                    // Version
	row[4] = "0"                                    // Channel
	row[5] = "0"                                    // Level
	row[7] = "0"                                    // Task
	row[8] = "0x0000000000000000"                   // Keyword
	row[14] = "{00000000-0000-0000-0000-000000000000}" // Activity ID
	for i, v := range overrides {
		row[i] = v
	}
	return row
}

func etwLog(rows [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"Event Name", "Type", "Event ID", "Version", "Channel", "Level",
		"Opcode", "Task", "Keyword", "PID", "TID", "Processor Number",
		"Instance ID", "Parent Instance ID", "Activity ID",
		"Related Activity ID", "Clock-Time", "Kernel(ms)", "User(ms)",
		"User Data",
	}
	_ = w.Write(header)
	for _, r := range rows {
		_ = w.Write(r)
	}
	w.Flush()
	return buf.String()
}

func (s *etwSuite) driveMap() *pathutil.DOSDriveMap {
	return pathutil.NewDOSDriveMapFromEntries(map[string]string{
		`\Device\HarddiskVolume1`: "c:",
	})
}

func (s *etwSuite) TestFileCreateOnlyForTrackedPid(c *C) {
	dcstart := etwRow(map[int]string{
		0:  "Process",
		1:  "DCStart",
		9:  "0x5",
		21: "0x5",
		26: `"logman.exe"`,
	})
	fileCreate := etwRow(map[int]string{
		0:  "FileIo",
		1:  "Create",
		9:  "0x5",
		25: `"\Device\HarddiskVolume1\proj\main.go"`,
	})
	log := etwLog([][]string{dcstart, fileCreate})

	res, err := traceparse.ParseEtw(bytes.NewBufferString(log), noopClassifier(), s.driveMap(), nil)
	c.Assert(err, IsNil)
	found := false
	for f := range res.Existent {
		if f == `c:\proj\main.go` {
			found = true
		}
	}
	for f := range res.NonExistent {
		if f == `c:\proj\main.go` {
			found = true
		}
	}
	c.Check(found, Equals, true)
}

func (s *etwSuite) TestFileCreateIgnoredForUntrackedPid(c *C) {
	fileCreate := etwRow(map[int]string{
		0:  "FileIo",
		1:  "Create",
		9:  "0x99",
		25: `"\Device\HarddiskVolume1\proj\main.go"`,
	})
	log := etwLog([][]string{fileCreate})

	res, err := traceparse.ParseEtw(bytes.NewBufferString(log), noopClassifier(), s.driveMap(), nil)
	c.Assert(err, IsNil)
	c.Check(len(res.Existent)+len(res.NonExistent), Equals, 0)
}

func (s *etwSuite) TestProcessStartTracksChildPidAcrossSplitColumns(c *C) {
	// Event Name and Type arrive as two separate CSV columns ("Process",
	// "DCStart"), never as one compound string, so this exercises that the
	// dispatch key is actually assembled from both before every handler
	// below fires.
	dcstart := etwRow(map[int]string{
		0:  "Process",
		1:  "DCStart",
		9:  "0x5",
		21: "0x5",
		26: `"logman.exe"`,
	})
	start := etwRow(map[int]string{
		0:  "Process",
		1:  "Start",
		9:  "0x5",
		20: "0x7",
		26: `"build.exe"`,
	})
	fileCreate := etwRow(map[int]string{
		0:  "FileIo",
		1:  "Create",
		9:  "0x7",
		25: `"\Device\HarddiskVolume1\proj\out.obj"`,
	})
	log := etwLog([][]string{dcstart, start, fileCreate})

	res, err := traceparse.ParseEtw(bytes.NewBufferString(log), noopClassifier(), s.driveMap(), nil)
	c.Assert(err, IsNil)
	found := false
	for f := range res.Existent {
		if f == `c:\proj\out.obj` {
			found = true
		}
	}
	for f := range res.NonExistent {
		if f == `c:\proj\out.obj` {
			found = true
		}
	}
	c.Check(found, Equals, true)
}

func (s *etwSuite) TestNTPathWithNoDriveMappingFails(c *C) {
	dcstart := etwRow(map[int]string{
		0:  "Process",
		1:  "DCStart",
		9:  "0x5",
		21: "0x5",
		26: `"logman.exe"`,
	})
	fileCreate := etwRow(map[int]string{
		0:  "FileIo",
		1:  "Create",
		9:  "0x5",
		25: `"\Device\HarddiskVolume9\proj\main.go"`,
	})
	log := etwLog([][]string{dcstart, fileCreate})

	_, err := traceparse.ParseEtw(bytes.NewBufferString(log), noopClassifier(), s.driveMap(), nil)
	c.Assert(err, NotNil)
}
