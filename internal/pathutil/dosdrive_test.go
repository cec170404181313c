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
package pathutil_test

import (
	. "gopkg.in/check.v1"

	"github.com/anonymouse64/traceinputs/internal/pathutil"
)

type dosDriveSuite struct {
	m *pathutil.DOSDriveMap
}

var _ = Suite(&dosDriveSuite{})

func (s *dosDriveSuite) SetUpTest(c *C) {
	s.m = pathutil.NewDOSDriveMapFromEntries(map[string]string{
		`\Device\HarddiskVolume1`: "C:",
		`\Device\HarddiskVolume2`: "D:",
	})
}

func (s *dosDriveSuite) TestToDriveRoot(c *C) {
	got, err := s.m.ToDrive(`\Device\HarddiskVolume1`)
	c.Assert(err, IsNil)
	c.Check(got, Equals, "C:")
}

func (s *dosDriveSuite) TestToDriveWithSuffix(c *C) {
	got, err := s.m.ToDrive(`\Device\HarddiskVolume2\Windows\System32`)
	c.Assert(err, IsNil)
	c.Check(got, Equals, `D:\Windows\System32`)
}

func (s *dosDriveSuite) TestToDriveUnmappedDevice(c *C) {
	_, err := s.m.ToDrive(`\Device\HarddiskVolume9\foo`)
	c.Assert(err, NotNil)
}

func (s *dosDriveSuite) TestToDriveNotNTPath(c *C) {
	_, err := s.m.ToDrive(`C:\Windows\System32`)
	c.Assert(err, NotNil)
}
