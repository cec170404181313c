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

// Package tracer drives the OS-specific kernel tracer (strace, dtrace,
// ETW) that records a child process's file-related syscalls to a log file.
package tracer

import (
	"runtime"

	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// Flavor identifies one of the three supported tracer back-ends.
type Flavor int

const (
	// LinuxStrace drives strace on Linux.
	LinuxStrace Flavor = iota
	// MacDtrace drives dtrace on macOS.
	MacDtrace
	// WindowsETW drives logman.exe/tracerpt.exe on Windows.
	WindowsETW
)

func (f Flavor) String() string {
	switch f {
	case LinuxStrace:
		return "linux"
	case MacDtrace:
		return "mac"
	case WindowsETW:
		return "win"
	default:
		return "unknown"
	}
}

// ConditionOS is the `OS=="..."` predicate value the downstream formatter
// embeds in the emitted structured value for this flavor.
func (f Flavor) ConditionOS() string {
	return f.String()
}

// detectFlavor is replaced in tests to inject a flavor without depending on
// the build host's actual GOOS, following the same test-seam pattern as
// internal/commands's userCurrent variable.
var detectFlavor = func() (Flavor, error) {
	switch runtime.GOOS {
	case "linux":
		return LinuxStrace, nil
	case "darwin":
		return MacDtrace, nil
	case "windows":
		return WindowsETW, nil
	default:
		return 0, tracerr.New(tracerr.KindUnsupportedPlatform, "unsupported platform %q", runtime.GOOS)
	}
}

// DetectFlavor selects the TracerFlavor for the current host.
func DetectFlavor() (Flavor, error) {
	return detectFlavor()
}

// MockDetectFlavor overrides DetectFlavor for the duration of a test.
func MockDetectFlavor(f Flavor, err error) (restore func()) {
	old := detectFlavor
	detectFlavor = func() (Flavor, error) { return f, err }
	return func() {
		detectFlavor = old
	}
}
