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

// Package orchestrator ties the tracer drivers, the log parsers, and the
// post-processor together: decide whether a fresh trace is needed, run it,
// parse the resulting log, and reduce the result to the structured value an
// external build tool consumes.
package orchestrator

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/anonymouse64/traceinputs/internal/classify"
	"github.com/anonymouse64/traceinputs/internal/pathutil"
	"github.com/anonymouse64/traceinputs/internal/postprocess"
	"github.com/anonymouse64/traceinputs/internal/tracer"
	"github.com/anonymouse64/traceinputs/internal/traceparse"
	"github.com/anonymouse64/traceinputs/internal/tracerr"
)

// Config is the orchestrator's input, built by the CLI adapter from parsed
// flags. Core packages never read os.Args or the environment directly.
type Config struct {
	// RootDir is the absolute directory the tracked files are expected to
	// live under. Resolved through realpath before use.
	RootDir string
	// Logfile is the absolute path to the trace log, existing or to be
	// created.
	Logfile string
	// Cmd is the child command to trace. Required unless Logfile already
	// exists and Force is false.
	Cmd []string
	// CwdDir, when non-nil, is the directory (relative to RootDir) the
	// child is started from, and triggers emission of a FinalValue. A nil
	// CwdDir means "diagnostics only, no structured result" (mirrors the
	// CLI's -c/--cwd being entirely absent, as distinct from present-but-
	// empty).
	CwdDir *string
	// ProductDir is the build output directory, relative to RootDir,
	// substituted with the PRODUCT_DIR token. Defaults to "out/Release" at
	// the CLI layer; the orchestrator treats "" as "no substitution".
	ProductDir string
	// Force retraces even when Logfile already exists.
	Force bool
	// HelperCommand builds the dtrace arming helper's exec.Cmd on Darwin.
	// Required only when the host flavor is tracer.MacDtrace.
	HelperCommand func(cmd []string, cwd string, env []string) (*exec.Cmd, error)
	Opts          tracer.Options
}

// FinalValue is the reduced, flavor-tagged result a downstream formatter
// renders into the conditions/variables structure external build tools
// expect.
type FinalValue struct {
	Flavor    tracer.Flavor
	Tracked   []string
	Untracked []string
}

// Run executes the algorithm: fix up an interpreted argv, trace if needed,
// parse the log, and reduce it. The returned exit code is the traced
// child's (or the tracer's own, if it failed to run the child at all); err
// is non-nil only for conditions the CLI should report as an internal
// failure rather than propagate as an exit code.
func Run(cfg Config) (*FinalValue, int, error) {
	log := cfg.Opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if !filepath.IsAbs(cfg.RootDir) {
		return nil, 1, tracerr.New(tracerr.KindPathNotAbsolute, "root dir %q is not absolute", cfg.RootDir)
	}
	if !filepath.IsAbs(cfg.Logfile) {
		return nil, 1, tracerr.New(tracerr.KindPathNotAbsolute, "logfile %q is not absolute", cfg.Logfile)
	}
	if cfg.CwdDir != nil && filepath.IsAbs(*cfg.CwdDir) {
		return nil, 1, tracerr.New(tracerr.KindPathNotAbsolute, "cwd dir %q must be relative", *cfg.CwdDir)
	}
	if cfg.ProductDir != "" && filepath.IsAbs(cfg.ProductDir) {
		return nil, 1, tracerr.New(tracerr.KindPathNotAbsolute, "product dir %q must be relative", cfg.ProductDir)
	}

	logExists := fileExists(cfg.Logfile)
	if (cfg.Force || !logExists) && len(cfg.Cmd) == 0 {
		return nil, 1, tracerr.New(tracerr.KindChildExit, "no command to run")
	}

	cmd := fixInterpreterPath(cfg.Cmd)

	flavor, err := tracer.DetectFlavor()
	if err != nil {
		return nil, 1, err
	}

	rootDir, err := pathutil.Realpath(cfg.RootDir)
	if err != nil {
		return nil, 1, tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	cwdDir := ""
	if cfg.CwdDir != nil {
		cwdDir = *cfg.CwdDir
	}
	productDir := cfg.ProductDir
	if flavor == tracer.WindowsETW {
		rootDir = strings.ToLower(rootDir)
		cwdDir = strings.ToLower(cwdDir)
		productDir = strings.ToLower(productDir)
	}

	if !logExists || cfg.Force {
		if logExists {
			if err := os.Remove(cfg.Logfile); err != nil {
				return nil, 1, tracerr.Wrap(tracerr.KindTracerSpawnFailed, err)
			}
		}
		log.Info("tracing", "cmd", cmd)

		childCwd := rootDir
		if cwdDir != "" {
			childCwd = filepath.Join(rootDir, cwdDir)
		}

		driver, err := selectDriver(flavor, cfg, childEnv())
		if err != nil {
			return nil, 1, err
		}
		exitCode, err := driver.GenTrace(cmd, childCwd, cfg.Logfile)
		if err != nil {
			return nil, 1, err
		}
		if exitCode != 0 && !cfg.Force {
			return nil, exitCode, nil
		}
	}

	classifier := buildClassifier(flavor, cmd)

	log.Info("loading trace", "logfile", cfg.Logfile)
	result, err := parseLog(flavor, cfg.Logfile, classifier, log)
	if err != nil {
		return nil, 1, err
	}

	existent := result.SortedExistent()
	log.Info("parsed trace", "existent", len(existent), "non_existent", len(result.SortedNonExistent()))

	rootDirSep := strings.TrimRight(rootDir, string(filepath.Separator)) + string(filepath.Separator)
	expected, unexpected := postprocess.RelevantFiles(existent, rootDirSep)
	if len(unexpected) > 0 {
		log.Info("unexpected files outside root", "count", len(unexpected))
	}

	simplified, err := postprocess.ExtractDirectories(expected, rootDir)
	if err != nil {
		return nil, 1, tracerr.Wrap(tracerr.KindPathMissing, err)
	}
	log.Info("reduced", "from", len(expected), "to", len(simplified))

	if cfg.CwdDir == nil {
		return nil, 0, nil
	}

	tracked, untracked := postprocess.Rebase(simplified, cwdDir, productDir)
	return &FinalValue{Flavor: flavor, Tracked: tracked, Untracked: untracked}, 0, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// childEnv returns the current environment with ISOLATE_DEBUG stripped, so
// the traced child never emits its own recursive diagnostic output.
func childEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if key, _, ok := strings.Cut(kv, "="); ok && key == "ISOLATE_DEBUG" {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func selectDriver(flavor tracer.Flavor, cfg Config, env []string) (tracer.Driver, error) {
	opts := cfg.Opts
	opts.Env = env
	switch flavor {
	case tracer.LinuxStrace:
		return tracer.NewLinuxDriver(traceparse.LinuxSyscallNames(), opts), nil
	case tracer.MacDtrace:
		if cfg.HelperCommand == nil {
			return nil, tracerr.New(tracerr.KindTracerSpawnFailed, "no dtrace helper command configured")
		}
		return tracer.NewDarwinDriver(cfg.HelperCommand, opts), nil
	case tracer.WindowsETW:
		return tracer.NewWindowsDriver(opts), nil
	default:
		return nil, tracerr.New(tracerr.KindUnsupportedPlatform, "unsupported platform")
	}
}

// buildClassifier constructs the flavor's ignored-prefix PathClassifier.
// On Windows the interpreter's own directory (cmd[0] after fixup resolves
// it to an absolute path) is added to the ignore list, mirroring the
// original tool seeding IGNORED from the running interpreter's directory.
func buildClassifier(flavor tracer.Flavor, cmd []string) classify.PathClassifier {
	switch flavor {
	case tracer.LinuxStrace:
		return classify.New(classify.LinuxIgnored())
	case tracer.MacDtrace:
		return classify.New(classify.DarwinIgnored())
	case tracer.WindowsETW:
		interpreterDir := ""
		if len(cmd) > 0 && filepath.IsAbs(cmd[0]) {
			interpreterDir = filepath.Dir(cmd[0])
		}
		return classify.New(classify.WindowsIgnored(interpreterDir, pathutil.ShortPath))
	default:
		return classify.New(nil)
	}
}

func parseLog(flavor tracer.Flavor, logfile string, classifier classify.PathClassifier, logger *slog.Logger) (*traceparse.TraceResult, error) {
	f, err := os.Open(logfile)
	if err != nil {
		return nil, tracerr.Wrap(tracerr.KindLogParseError, err)
	}
	defer f.Close()

	switch flavor {
	case tracer.LinuxStrace:
		return traceparse.ParseStrace(f, classifier)
	case tracer.MacDtrace:
		return traceparse.ParseDtrace(f, classifier, logger)
	case tracer.WindowsETW:
		driveMap, err := pathutil.BuildDOSDriveMap()
		if err != nil {
			return nil, tracerr.Wrap(tracerr.KindPathMissing, err)
		}
		return traceparse.ParseEtw(f, classifier, driveMap, logger)
	default:
		return nil, tracerr.New(tracerr.KindUnsupportedPlatform, "unsupported platform")
	}
}

// interpreterNames are the bare interpreter invocations fixInterpreterPath
// resolves against the host's PATH, the generalization of the original
// tool's python-only fix_python_path.
var interpreterNames = map[string]string{
	"python":  "python3",
	"python3": "python3",
	"sh":      "sh",
	"bash":    "bash",
}

// scriptInterpreters maps an interpreted script's extension to the
// interpreter that runs it, for the case where cmd[0] names a script
// directly rather than an interpreter.
var scriptInterpreters = map[string]string{
	".py": "python3",
	".sh": "sh",
}

// lookPath is a package-level seam so tests can fake PATH resolution
// without touching the real filesystem, the same pattern
// internal/commands uses for userCurrent.
var lookPath = exec.LookPath

// fixInterpreterPath rewrites a leading bare interpreter name to its
// resolved absolute path, or prepends the right interpreter when cmd[0]
// names an interpreted script by extension. cmd is returned unchanged if
// neither applies, or if the interpreter can't be found on PATH (the
// caller's eventual GenTrace will fail with a clearer error).
func fixInterpreterPath(cmd []string) []string {
	if len(cmd) == 0 {
		return cmd
	}
	out := make([]string, len(cmd))
	copy(out, cmd)

	if resolved, ok := interpreterNames[out[0]]; ok {
		if p, err := lookPath(resolved); err == nil {
			out[0] = p
		}
		return out
	}

	ext := strings.ToLower(filepath.Ext(out[0]))
	if interp, ok := scriptInterpreters[ext]; ok {
		if p, err := lookPath(interp); err == nil {
			return append([]string{p}, out...)
		}
	}
	return out
}
