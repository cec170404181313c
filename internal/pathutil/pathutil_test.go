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
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/anonymouse64/traceinputs/internal/pathutil"
)

func Test(t *testing.T) { TestingT(t) }

type pathSuite struct{}

var _ = Suite(&pathSuite{})

func (s *pathSuite) TestPosixRelpathKeepsTrailingSlash(c *C) {
	tt := []struct {
		p, base, expect string
		comment         string
	}{
		{"/a/b/c", "/a", "b/c", "plain file, no trailing slash"},
		{"/a/b/c/", "/a", "b/c/", "directory keeps trailing slash"},
		{"/a", "/a", ".", "identical paths"},
		{"/a/b", "/a/c", "../b", "sibling requires climbing out"},
	}
	for _, t := range tt {
		got, err := pathutil.PosixRelpath(t.p, t.base)
		c.Assert(err, IsNil, Commentf(t.comment))
		c.Check(got, Equals, t.expect, Commentf(t.comment))
	}
}

func (s *pathSuite) TestNormalize(c *C) {
	c.Check(pathutil.Normalize(""), Equals, ".")
	c.Check(pathutil.Normalize("/a/./b/../c"), Equals, "/a/c")
}

func (s *pathSuite) TestRealpathMissing(c *C) {
	_, err := pathutil.Realpath("/this/path/does/not/exist/hopefully")
	c.Assert(err, NotNil)
}

func (s *pathSuite) TestRealpathMissingResolvesExistingAncestor(c *C) {
	real := c.MkDir()
	link := filepath.Join(c.MkDir(), "alias")
	c.Assert(os.Symlink(real, link), IsNil)

	got, err := pathutil.RealpathMissing(filepath.Join(link, "nope", "child.txt"))
	c.Assert(err, IsNil)
	c.Check(got, Equals, filepath.Join(real, "nope", "child.txt"))
}

func (s *pathSuite) TestRealpathMissingNoSymlinkIsNoop(c *C) {
	real := c.MkDir()
	got, err := pathutil.RealpathMissing(filepath.Join(real, "nope.txt"))
	c.Assert(err, IsNil)
	c.Check(got, Equals, filepath.Join(real, "nope.txt"))
}
