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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"github.com/snapcore/snapd/osutil"

	"github.com/anonymouse64/traceinputs/internal/orchestrator"
	"github.com/anonymouse64/traceinputs/internal/tracer"
)

// Command is the tool's CLI surface. Field ordering and flag names mirror
// the original trace_inputs.py optparse layout.
type Command struct {
	Verbose    []bool `short:"v" long:"verbose" description:"Increase log verbosity (once for INFO, twice for DEBUG)"`
	Log        string `short:"l" long:"log" description:"Path to the trace log" required:"yes"`
	CwdDir     string `short:"c" long:"cwd" description:"Directory relative to --root-dir the command runs from; when given, the tracked/untracked file lists are printed to stdout"`
	ProductDir string `short:"p" long:"product-dir" default:"out/Release" description:"Build output directory relative to --root-dir, substituted with PRODUCT_DIR"`
	RootDir    string `long:"root-dir" description:"Absolute directory the tracked files are expected to live under (default: this tool's own directory)"`
	Force      bool   `short:"f" long:"force" description:"Retrace even if --log already exists"`

	Args struct {
		Cmd []string `description:"Command to trace"`
	} `positional-args:"yes"`
}

var currentCmd Command
var parser = flags.NewParser(&currentCmd, flags.Default)

func main() {
	if len(os.Args) > 2 && os.Args[1] == dtraceHelperFlag {
		runDtraceHelper(os.Args[2:])
		return
	}

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}
}

func verboseLevel(n int) slog.Level {
	switch {
	case n <= 0:
		return slog.LevelError
	case n == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Execute validates the arguments the static go-flags tags can't express
// (a command is required unless the log already exists and --force is
// absent), builds an orchestrator.Config, and runs it. A non-nil return is
// always an argument error, reported by main as exit code 2; anything the
// traced command or tracer itself does exits the process directly so the
// real exit code survives.
func (c *Command) Execute(args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: verboseLevel(len(c.Verbose)),
	}))
	slog.SetDefault(logger)

	rootDir := c.RootDir
	if rootDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cannot determine tool directory: %w", err)
		}
		rootDir = filepath.Dir(exe)
	}
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	logPath, err := filepath.Abs(c.Log)
	if err != nil {
		return err
	}

	if (c.Force || !osutil.FileExists(logPath)) && len(c.Args.Cmd) == 0 {
		return fmt.Errorf("a command is required unless --log already exists and --force is not given")
	}

	var cwdDir *string
	if opt := parser.FindOptionByLongName("cwd"); opt != nil && opt.IsSet() {
		cwdDir = &c.CwdDir
	}

	cfg := orchestrator.Config{
		RootDir:       rootDir,
		Logfile:       logPath,
		Cmd:           c.Args.Cmd,
		CwdDir:        cwdDir,
		ProductDir:    c.ProductDir,
		Force:         c.Force,
		HelperCommand: dtraceHelperCommand,
		Opts: tracer.Options{
			Logger:  logger,
			Verbose: len(c.Verbose) > 0,
		},
	}

	value, exitCode, err := orchestrator.Run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failure: %v\n", err)
		os.Exit(1)
	}
	if value != nil {
		fmt.Fprint(os.Stdout, Format(value))
	}
	os.Exit(exitCode)
	return nil
}
