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

// Package classify builds the PathClassifier predicate the trace parsers
// use to drop irrelevant file events before they ever reach the
// existent/non_existent sets: platform-specific system directories, compiled
// bytecode, and VCS metadata directories.
package classify

import "strings"

// PathClassifier reports whether an absolute path should be dropped before
// classification. It is built once per orchestrator run from a flavor's
// ignored-prefix list and passed by value into the parser, never held as a
// package global.
type PathClassifier struct {
	ignoredPrefixes []string
	gitMarker       string
	svnMarker       string
}

// New builds a PathClassifier from a platform's ignored path prefixes. The
// git/.svn and .pyc rules are universal and added on every flavor.
func New(ignoredPrefixes []string) PathClassifier {
	return PathClassifier{
		ignoredPrefixes: ignoredPrefixes,
		gitMarker:       "/.git/",
		svnMarker:       "/.svn/",
	}
}

// Blacklisted reports whether f should be dropped: it sits under one of the
// ignored prefixes, ends in .pyc, or passes through a .git/ or .svn/
// directory anywhere in its path.
func (c PathClassifier) Blacklisted(f string) bool {
	for _, prefix := range c.ignoredPrefixes {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return strings.HasSuffix(f, ".pyc") ||
		strings.Contains(f, c.gitMarker) ||
		strings.Contains(f, c.svnMarker)
}

// LinuxIgnored is the fixed set of path prefixes strace-flavor traces always
// ignore, matching Strace.IGNORED in the original isolate tool.
func LinuxIgnored() []string {
	return []string{
		"/bin",
		"/dev",
		"/etc",
		"/lib",
		"/proc",
		"/sys",
		"/tmp",
		"/usr",
		"/var",
	}
}

// DarwinIgnored is the fixed set of path prefixes dtrace-flavor traces
// always ignore, matching Dtrace.IGNORED.
func DarwinIgnored() []string {
	return []string{
		"/.vol",
		"/Library",
		"/System",
		"/dev",
		"/etc",
		"/private/var",
		"/tmp",
		"/usr",
		"/var",
	}
}
