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

// Package traceparse turns a raw kernel-tracer log into the set of absolute
// paths a traced process tree touched, one parser per tracer flavor.
package traceparse

import (
	"path"

	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// ProcessContext is the per-pid cwd map every parser threads through its
// line handlers. It lives only for the duration of one parse and is never
// shared across parse sessions.
type ProcessContext struct {
	cwd map[int]string
}

// NewProcessContext returns an empty context.
func NewProcessContext() *ProcessContext {
	return &ProcessContext{cwd: map[int]string{}}
}

// Start records pid's initial cwd, either the synthetic root chdir or a
// start/clone/fork inheriting the parent's.
func (c *ProcessContext) Start(pid int, cwd string) {
	c.cwd[pid] = cwd
}

// Fork copies the parent's cwd to a newly observed child pid.
func (c *ProcessContext) Fork(parent, child int) error {
	cwd, ok := c.cwd[parent]
	if !ok {
		return tracerr.New(tracerr.KindLogParseError, "fork from pid %d with no known cwd", parent)
	}
	c.cwd[child] = cwd
	return nil
}

// Chdir updates pid's cwd: an absolute target replaces it outright, a
// relative one is joined against the existing cwd.
func (c *ProcessContext) Chdir(pid int, target string) error {
	cur, ok := c.cwd[pid]
	if !ok {
		return tracerr.New(tracerr.KindLogParseError, "chdir for pid %d with no known cwd", pid)
	}
	if path.IsAbs(target) {
		c.cwd[pid] = target
		return nil
	}
	c.cwd[pid] = path.Join(cur, target)
	return nil
}

// Exit removes pid from the context.
func (c *ProcessContext) Exit(pid int) {
	delete(c.cwd, pid)
}

// Cwd returns pid's current working directory. The second return is false
// if pid was never started, which the caller must treat as a fatal parse
// error: every file event a parser sees must be for a pid whose cwd was
// established by a prior start/clone or the synthetic initial chdir.
func (c *ProcessContext) Cwd(pid int) (string, bool) {
	cwd, ok := c.cwd[pid]
	return cwd, ok
}

// Resolve turns a possibly-relative filepath into an absolute one against
// pid's cwd.
func (c *ProcessContext) Resolve(pid int, filepath string) (string, error) {
	if path.IsAbs(filepath) {
		return filepath, nil
	}
	cwd, ok := c.Cwd(pid)
	if !ok {
		return "", tracerr.New(tracerr.KindLogParseError, "file event for pid %d with no known cwd", pid)
	}
	return path.Join(cwd, filepath), nil
}
