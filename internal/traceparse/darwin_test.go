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
	"strings"

	. "gopkg.in/check.v1"

	"github.com/anonymouse64/traceinputs/internal/traceparse"
)

type dtraceSuite struct{}

var _ = Suite(&dtraceSuite{})

func (s *dtraceSuite) TestSyntheticChdirAndOpen(c *C) {
	log := `0 1:100 chdir("/tmp/proj") = 0
1 1:100 open("main.go", 0, 420) = 0
`
	res, err := traceparse.ParseDtrace(strings.NewReader(log), noopClassifier(), nil)
	c.Assert(err, IsNil)
	found := false
	for f := range res.Existent {
		if f == "/tmp/proj/main.go" {
			found = true
		}
	}
	for f := range res.NonExistent {
		if f == "/tmp/proj/main.go" {
			found = true
		}
	}
	c.Check(found, Equals, true)
}

func (s *dtraceSuite) TestForkTransfersCwd(c *C) {
	log := `0 1:100 chdir("/tmp/proj") = 0
1 100:200 proc_start("child", 1) = 0
2 200:200 open("child.go", 0, 420) = 0
`
	res, err := traceparse.ParseDtrace(strings.NewReader(log), noopClassifier(), nil)
	c.Assert(err, IsNil)
	found := false
	for f := range res.Existent {
		if f == "/tmp/proj/child.go" {
			found = true
		}
	}
	for f := range res.NonExistent {
		if f == "/tmp/proj/child.go" {
			found = true
		}
	}
	c.Check(found, Equals, true)
}

func (s *dtraceSuite) TestODirectoryFlagIgnored(c *C) {
	log := `0 1:100 chdir("/tmp/proj") = 0
1 1:100 open("subdir", 1048576, 420) = 0
`
	res, err := traceparse.ParseDtrace(strings.NewReader(log), noopClassifier(), nil)
	c.Assert(err, IsNil)
	c.Check(len(res.Existent)+len(res.NonExistent), Equals, 0)
}

func (s *dtraceSuite) TestUnknownProbeNameIgnored(c *C) {
	log := `0 1:100 chdir("/tmp/proj") = 0
1 1:100 some_probe("whatever") = 0
2 1:100 open("main.go", 0, 420) = 0
`
	res, err := traceparse.ParseDtrace(strings.NewReader(log), noopClassifier(), nil)
	c.Assert(err, IsNil)
	_, ok := res.Existent["/tmp/proj/main.go"]
	_, nok := res.NonExistent["/tmp/proj/main.go"]
	c.Check(ok || nok, Equals, true)
}

func (s *dtraceSuite) TestOpenNocancelAliasesToOpen(c *C) {
	log := `0 1:100 chdir("/tmp/proj") = 0
1 1:100 open_nocancel("main.go", 0, 420) = 0
`
	res, err := traceparse.ParseDtrace(strings.NewReader(log), noopClassifier(), nil)
	c.Assert(err, IsNil)
	found := false
	for f := range res.Existent {
		if f == "/tmp/proj/main.go" {
			found = true
		}
	}
	for f := range res.NonExistent {
		if f == "/tmp/proj/main.go" {
			found = true
		}
	}
	c.Check(found, Equals, true)
}
