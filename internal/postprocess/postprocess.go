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

// Package postprocess trims, collapses, and rebases the raw path sets a
// trace parser produces into the relative paths an external build tool can
// consume.
package postprocess

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/pathutil"
)

// RelevantFiles partitions absolute paths into those rooted under root
// (returned with root's prefix stripped) and the rest. root must include
// its trailing separator. Both results are sorted and deduplicated; files
// is never mutated.
func RelevantFiles(files []string, root string) (expected, unexpected []string) {
	expectedSet := map[string]struct{}{}
	unexpectedSet := map[string]struct{}{}
	for _, f := range files {
		if strings.HasPrefix(f, root) {
			rel := f[len(root):]
			if rel == "" {
				continue
			}
			expectedSet[rel] = struct{}{}
		} else {
			unexpectedSet[f] = struct{}{}
		}
	}
	return sortedSet(expectedSet), sortedSet(unexpectedSet)
}

// ExtractDirectories collapses directories whose every non-VCS,
// non-bytecode filesystem member was observed into a single trailing-slash
// entry. Directories are visited deepest-first so a fully consumed child
// directory collapses before its parent is considered.
func ExtractDirectories(files []string, root string) ([]string, error) {
	dirSet := map[string]struct{}{}
	remaining := map[string]struct{}{}
	for _, f := range files {
		remaining[f] = struct{}{}
		dirSet[path.Dir(f)] = struct{}{}
	}

	dirs := sortedSet(dirSet)
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	for _, dir := range dirs {
		entries, err := os.ReadDir(path.Join(root, dir))
		if err != nil {
			// The directory may not exist under root (e.g. dir == ".").
			continue
		}
		actual := map[string]struct{}{}
		for _, e := range entries {
			name := e.Name()
			if strings.HasSuffix(name, ".svn") || strings.HasSuffix(name, ".pyc") {
				continue
			}
			actual[path.Join(dir, name)] = struct{}{}
		}
		if len(actual) == 0 {
			continue
		}
		if isSubset(actual, remaining) {
			for f := range actual {
				delete(remaining, f)
			}
			remaining[dir+"/"] = struct{}{}
		}
	}

	return sortedSet(remaining), nil
}

func isSubset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Rebase expresses every simplified path relative to cwdDir, substituting
// the literal PRODUCT_DIR token for any path inside productDir, then
// partitions the result into tracked (ordinary files) and untracked
// (directories, or paths containing a space that the downstream tool
// cannot quote).
func Rebase(simplified []string, cwdDir, productDir string) (tracked, untracked []string) {
	cwdDir = normalizeDir(cwdDir)
	productDir = normalizeDir(productDir)

	for _, f := range simplified {
		var out string
		if productDir != "" && strings.HasPrefix(f, productDir) {
			out = "<(PRODUCT_DIR)/" + f[len(productDir):]
		} else {
			rel, err := pathutil.PosixRelpath(f, cwdDir)
			if err != nil || rel == "" || rel == "." {
				rel = "./"
			}
			out = rel
		}
		if strings.HasSuffix(out, "/") || strings.Contains(out, " ") {
			untracked = append(untracked, out)
		} else {
			tracked = append(tracked, out)
		}
	}
	sort.Strings(tracked)
	sort.Strings(untracked)
	return tracked, untracked
}

func normalizeDir(d string) string {
	if d == "" {
		return ""
	}
	if !strings.HasSuffix(d, "/") {
		return d + "/"
	}
	return d
}

func sortedSet(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
