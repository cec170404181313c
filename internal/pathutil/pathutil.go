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

// Package pathutil implements the platform-aware path normalization the
// trace parsers and post-processor share: POSIX-style relative paths that
// keep a trailing slash, lexical normalization, symlink resolution, and
// (Windows-only) NT device path to drive letter mapping and short path
// expansion.
package pathutil

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// PosixRelpath returns the '/'-separated relative path from base to p,
// with one addition: if p ended with a trailing '/', the result keeps a
// trailing '/' too. This mirrors the
// original isolate tool's posix_relpath(), which callers rely on to
// distinguish a saturated directory entry from a file of the same name.
func PosixRelpath(p, base string) (string, error) {
	out, err := posixRel(base, p)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(filepath.ToSlash(p), "/") && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	return out, nil
}

// posixRel is filepath.Rel operating purely on '/'-separated strings,
// regardless of host OS, since the inputs here are already isolate-style
// POSIX relative paths, not native OS paths.
func posixRel(base, target string) (string, error) {
	base = path.Clean(filepath.ToSlash(base))
	target = path.Clean(filepath.ToSlash(target))
	return relPath(base, target)
}

// relPath is a small POSIX-only reimplementation of filepath.Rel that
// never special-cases volume names, since isolate paths are always
// '/'-rooted by the time they reach this function.
func relPath(base, target string) (string, error) {
	if base == target {
		return ".", nil
	}
	baseParts := splitClean(base)
	targetParts := splitClean(target)

	i := 0
	for i < len(baseParts) && i < len(targetParts) && baseParts[i] == targetParts[i] {
		i++
	}

	up := len(baseParts) - i
	rest := targetParts[i:]

	parts := make([]string, 0, up+len(rest))
	for k := 0; k < up; k++ {
		parts = append(parts, "..")
	}
	parts = append(parts, rest...)
	if len(parts) == 0 {
		return ".", nil
	}
	return path.Join(parts...), nil
}

func splitClean(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Normalize performs lexical cleanup (. and .. collapse, duplicate
// separator removal) while preserving whether p was absolute, the way
// os.path.normpath() does in the Python original.
func Normalize(p string) string {
	if p == "" {
		return "."
	}
	cleaned := filepath.Clean(p)
	return cleaned
}

// Realpath follows symlinks to a canonical absolute form. A missing target
// fails with a *tracerr.Error of kind KindPathMissing.
func Realpath(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	return abs, nil
}

// RealpathMissing canonicalizes a path known not to exist on disk.
// filepath.EvalSymlinks fails outright on a missing leaf, so this walks up
// to the nearest existing ancestor, resolves that ancestor's symlinks, and
// rejoins the missing suffix unchanged. A symlinked parent directory still
// collapses to one canonical form this way, even though the leaf itself
// can never be resolved. p must already be absolute.
func RealpathMissing(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", tracerr.Wrap(tracerr.KindPathMissing, err)
	}

	var suffix []string
	dir := abs
	for {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root without finding anything that exists;
			// nothing to resolve against.
			return abs, nil
		}
		suffix = append([]string{filepath.Base(dir)}, suffix...)
		dir = parent
	}

	resolvedDir, err := Realpath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolvedDir}, suffix...)...), nil
}
