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
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/anonymouse64/traceinputs/internal/traceparse"
)

type resultSuite struct{}

var _ = Suite(&resultSuite{})

// TestNonExistentResolvesSymlinkedParent exercises a non-existent leaf
// whose parent directory is itself a symlink: the leaf can never be
// resolved, but the parent must still collapse to one canonical form so
// the same logical missing file isn't reported twice under two spellings.
func (s *resultSuite) TestNonExistentResolvesSymlinkedParent(c *C) {
	real := c.MkDir()
	link := filepath.Join(c.MkDir(), "alias")
	c.Assert(os.Symlink(real, link), IsNil)

	missingViaLink := filepath.Join(link, "nope.txt")
	r := &traceparse.TraceResult{
		Existent:    map[string]struct{}{},
		NonExistent: map[string]struct{}{missingViaLink: {}},
	}

	out, err := r.Finalize()
	c.Assert(err, IsNil)
	want := filepath.Join(real, "nope.txt")
	_, ok := out.NonExistent[want]
	c.Check(ok, Equals, true)
	_, stillAliased := out.NonExistent[missingViaLink]
	c.Check(stillAliased, Equals, false)
}

// TestNonExistentDeepMissingChainResolvesToRootAncestor covers a path
// where multiple trailing components are missing, not just the leaf.
func (s *resultSuite) TestNonExistentDeepMissingChainResolvesToRootAncestor(c *C) {
	real := c.MkDir()
	link := filepath.Join(c.MkDir(), "alias")
	c.Assert(os.Symlink(real, link), IsNil)

	missingViaLink := filepath.Join(link, "a", "b", "c.txt")
	r := &traceparse.TraceResult{
		Existent:    map[string]struct{}{},
		NonExistent: map[string]struct{}{missingViaLink: {}},
	}

	out, err := r.Finalize()
	c.Assert(err, IsNil)
	want := filepath.Join(real, "a", "b", "c.txt")
	_, ok := out.NonExistent[want]
	c.Check(ok, Equals, true)
}
