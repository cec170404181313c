//go:build windows

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

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// BuildDOSDriveMap iterates drive letters C: through Z:, asks
// QueryDosDevice what NT device each maps to, and keeps the lower letter on
// collision, matching the original ctypes DosDriveMap.__init__ behavior.
func BuildDOSDriveMap() (*DOSDriveMap, error) {
	entries := map[string]string{}
	buf := make([]uint16, 1024)
	for l := 'C'; l <= 'Z'; l++ {
		letter := fmt.Sprintf("%c:", l)
		letterPtr, err := windows.UTF16PtrFromString(letter)
		if err != nil {
			continue
		}
		n, err := windows.QueryDosDevice(letterPtr, &buf[0], uint32(len(buf)))
		if err != nil || n == 0 {
			// Unassigned drive letters fail here; that's expected, skip them.
			continue
		}
		target := windows.UTF16ToString(buf[:n])
		if _, exists := entries[target]; !exists {
			entries[target] = letter
		}
	}
	return NewDOSDriveMapFromEntries(entries), nil
}

// ShortPath returns the 8.3 short form of p via GetShortPathName, used only
// to populate the Windows blacklist with both long and short forms of
// environment-variable directories (%TEMP%, %ProgramFiles%, etc).
func ShortPath(p string) (string, error) {
	longPtr, err := windows.UTF16PtrFromString(p)
	if err != nil {
		return "", tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	n, err := windows.GetShortPathName(longPtr, nil, 0)
	if err != nil || n == 0 {
		return "", tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	buf := make([]uint16, n)
	n, err = windows.GetShortPathName(longPtr, &buf[0], uint32(len(buf)))
	if err != nil || n == 0 {
		return "", tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	return windows.UTF16ToString(buf[:n]), nil
}

// SetInvariantLocale sets the calling thread's locale to LOCALE_INVARIANT,
// which tracerpt.exe needs set before it runs so it doesn't localize the
// CSV "Type" column header.
func SetInvariantLocale() error {
	const localeInvariant = 0x7F
	return windows.SetThreadLocale(localeInvariant)
}
