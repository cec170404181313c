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

package classify

import (
	"os"
	"sort"
	"strings"
)

// windowsEnvVarsToIgnore mirrors vars_to_ignore in the original tool's
// LogmanTrace.__init__: directories pointed to by these variables are
// always noise in an ETW trace.
var windowsEnvVarsToIgnore = []string{
	"APPDATA",
	"LOCALAPPDATA",
	"ProgramData",
	"ProgramFiles",
	"ProgramFiles(x86)",
	"ProgramW6432",
	"SystemRoot",
	"TEMP",
	"TMP",
}

// WindowsIgnored builds the ETW flavor's ignored-prefix list at runtime: the
// interpreter's own directory, every directory named by the environment
// variables above, each of those in its 8.3 short form, and the literal
// "\systemroot" (which has no short form). shortPath is injected so this
// stays testable without a real Windows host; production callers pass
// pathutil.ShortPath.
func WindowsIgnored(interpreterDir string, shortPath func(string) (string, error)) []string {
	seen := map[string]bool{}
	add := func(s string) {
		if s == "" {
			return
		}
		seen[strings.ToLower(s)] = true
	}

	add(interpreterDir)
	for _, v := range windowsEnvVarsToIgnore {
		add(os.Getenv(v))
	}

	for long := range copyKeys(seen) {
		if short, err := shortPath(long); err == nil {
			add(short)
		}
	}

	add(`\systemroot`)

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyKeys(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
