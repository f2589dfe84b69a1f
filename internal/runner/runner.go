// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Runner executes one collaborator command line to completion.
	Runner interface {
		// Run executes command in the configured working directory and
		// returns a non-nil error when the command exits non-zero or cannot
		// be started. extraEnv entries are KEY=VALUE pairs visible to the
		// command (e.g., the package name for per-package installs).
		Run(ctx context.Context, command string, extraEnv ...string) error
	}

	// ShellRunner interprets command lines with the embedded shell, so the
	// configured collaborator commands behave the same on any host without
	// depending on /bin/sh.
	ShellRunner struct {
		dir    string
		env    []string
		stdout io.Writer
		stderr io.Writer
	}

	// ShellOption configures a ShellRunner.
	ShellOption func(*ShellRunner)
)

// WithDir sets the working directory for executed commands.
func WithDir(dir string) ShellOption {
	return func(r *ShellRunner) {
		r.dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment. Used to put
// the runtime environment's bin directory first on PATH.
func WithEnv(pairs ...string) ShellOption {
	return func(r *ShellRunner) {
		r.env = append(r.env, pairs...)
	}
}

// WithOutput redirects command output (default os.Stdout/os.Stderr).
func WithOutput(stdout, stderr io.Writer) ShellOption {
	return func(r *ShellRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewShellRunner creates a ShellRunner.
func NewShellRunner(opts ...ShellOption) *ShellRunner {
	r := &ShellRunner{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run parses and executes a single command line.
func (r *ShellRunner) Run(ctx context.Context, command string, extraEnv ...string) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		return fmt.Errorf("parsing command %q: %w", command, err)
	}

	env := append(append(os.Environ(), r.env...), extraEnv...)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, r.stdout, r.stderr),
	}
	if r.dir != "" {
		opts = append(opts, interp.Dir(r.dir))
	}

	sh, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("creating interpreter: %w", err)
	}

	if err := sh.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return fmt.Errorf("command %q exited with status %d", command, int(exitStatus))
		}
		return fmt.Errorf("running command %q: %w", command, err)
	}

	return nil
}
