//go:build !windows

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

package pathutil

import "github.com/anonymouse64/traceinputs/internal/tracerr"

// BuildDOSDriveMap exists on every platform so the orchestrator can call it
// unconditionally before branching on flavor; off Windows there is no
// QueryDosDevice to ask, so it fails loudly rather than returning an empty,
// silently-useless map.
func BuildDOSDriveMap() (*DOSDriveMap, error) {
	return nil, tracerr.New(tracerr.KindUnsupportedPlatform, "NT drive mapping is only available on windows")
}

// ShortPath has no meaning outside Windows 8.3 path expansion.
func ShortPath(p string) (string, error) {
	return "", tracerr.New(tracerr.KindUnsupportedPlatform, "short path expansion is only available on windows")
}

// SetInvariantLocale has no equivalent outside the Win32 thread locale API.
func SetInvariantLocale() error {
	return tracerr.New(tracerr.KindUnsupportedPlatform, "thread locale is only available on windows")
}
