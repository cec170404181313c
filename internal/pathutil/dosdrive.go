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
	"regexp"

	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// DOSDriveMap maps an NT-internal device prefix (\Device\HarddiskVolumeN)
// to the DOS drive letter (N:) it is currently mounted as. The mapping is
// built once, at orchestrator start, by iterating drive letters C:-Z: and
// querying the device each one resolves to (see BuildDOSDriveMap, Windows
// only); ToDrive itself is pure and platform independent so it can be
// exercised from tests on any host by injecting a fake map.
type DOSDriveMap struct {
	deviceToDrive map[string]string
}

var ntDevicePrefixRE = regexp.MustCompile(`(?s)^(\\Device\\[a-zA-Z0-9]+)(\\.*)?$`)

// NewDOSDriveMapFromEntries builds a DOSDriveMap from a precomputed
// device->drive table. Used directly by tests, and by BuildDOSDriveMap on
// Windows once it has queried every drive letter.
func NewDOSDriveMapFromEntries(entries map[string]string) *DOSDriveMap {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return &DOSDriveMap{deviceToDrive: m}
}

// ToDrive converts a native NT path such as
// `\Device\HarddiskVolume2\Windows\System32` into its DOS equivalent such
// as `C:\Windows\System32`. An NT path whose device prefix has no matching
// drive letter fails loudly rather than returning the NT path unchanged.
func (m *DOSDriveMap) ToDrive(ntPath string) (string, error) {
	match := ntDevicePrefixRE.FindStringSubmatch(ntPath)
	if match == nil {
		return "", tracerr.New(tracerr.KindPathNotAbsolute, "not an NT device path: %q", ntPath)
	}
	drive, ok := m.deviceToDrive[match[1]]
	if !ok {
		return "", tracerr.New(tracerr.KindPathMissing, "no drive letter mapped for device %q (from %q)", match[1], ntPath)
	}
	if match[2] == "" {
		return drive, nil
	}
	return drive + match[2], nil
}
