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
	"sort"

	"github.com/snapcore/snapd/osutil"

	"github.com/anonymouse64/traceinputs/internal/classify"
	"github.com/anonymouse64/traceinputs/internal/pathutil"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// TraceResult is the parser's output: a pair of disjoint absolute, canonical
// path sets. Directories are never members.
type TraceResult struct {
	Existent    map[string]struct{}
	NonExistent map[string]struct{}
}

func newTraceResult() *TraceResult {
	return &TraceResult{
		Existent:    map[string]struct{}{},
		NonExistent: map[string]struct{}{},
	}
}

// record drops filepath if the classifier blacklists it and otherwise
// classifies it as existent or non-existent. Flavor-specific directory
// filtering (O_DIRECTORY on Linux/Darwin, a filesystem isdir() fallback on
// Windows, see the per-OS parsers) has already been applied by the caller.
// A path never lands in
// both sets; a path already recorded is a no-op, matching the original
// tool's set semantics for log-once duplicates.
func (r *TraceResult) record(filepath string, classifier classify.PathClassifier) {
	if classifier.Blacklisted(filepath) {
		return
	}
	if _, ok := r.Existent[filepath]; ok {
		return
	}
	if _, ok := r.NonExistent[filepath]; ok {
		return
	}
	if osutil.FileExists(filepath) {
		r.Existent[filepath] = struct{}{}
	} else {
		r.NonExistent[filepath] = struct{}{}
	}
}

// Finalize resolves every recorded path through realpath, merging symlink
// aliases, and returns a fresh TraceResult. Existent entries resolve fully;
// non-existent entries resolve up to their nearest existing ancestor, since
// the leaf itself cannot be evaluated; a non-existent entry that resolves
// to an existent one is dropped. It fails if the two resulting sets are
// not disjoint, which should be structurally impossible given record's
// logic but is asserted here: a path is either existent or non_existent,
// never both.
func (r *TraceResult) Finalize() (*TraceResult, error) {
	out := newTraceResult()
	for f := range r.Existent {
		real, err := pathutil.Realpath(f)
		if err != nil {
			// The file existed when traced but vanished by the time we
			// finalize; that is a non-existent path now.
			out.NonExistent[f] = struct{}{}
			continue
		}
		out.Existent[real] = struct{}{}
	}
	for f := range r.NonExistent {
		real, err := pathutil.RealpathMissing(f)
		if err != nil {
			return nil, err
		}
		if _, ok := out.Existent[real]; ok {
			continue
		}
		out.NonExistent[real] = struct{}{}
	}
	for f := range out.Existent {
		if _, ok := out.NonExistent[f]; ok {
			return nil, tracerr.New(tracerr.KindBlacklistAssertion, "path %q classified as both existent and non-existent", f)
		}
	}
	return out, nil
}

// SortedExistent returns Existent as a sorted slice, for deterministic
// downstream processing and tests.
func (r *TraceResult) SortedExistent() []string {
	return sortedKeys(r.Existent)
}

// SortedNonExistent returns NonExistent as a sorted slice.
func (r *TraceResult) SortedNonExistent() []string {
	return sortedKeys(r.NonExistent)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
