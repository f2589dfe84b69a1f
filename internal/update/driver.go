// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"stationup/internal/backup"
	"stationup/internal/config"
	"stationup/internal/diskspace"
	"stationup/internal/issue"
	"stationup/internal/runner"
	"stationup/internal/testutil"

	"github.com/charmbracelet/log"
)

var (
	// ErrSourceMissing means the station source tree does not exist.
	ErrSourceMissing = errors.New("station source tree not found")
	// ErrEnvMissing means the language runtime environment does not exist.
	ErrEnvMissing = errors.New("station runtime environment not found")
)

type (
	// Options wires a Driver's collaborators. Config is required; every
	// other nil field falls back to a production implementation.
	Options struct {
		Config *config.Config
		// Disk probes free space on the source filesystem.
		Disk diskspace.Checker
		// Backup drives the critical-file backup/restore cycle and owns
		// the progress marker.
		Backup *backup.Orchestrator
		// Runner executes collaborator command lines in the source tree.
		Runner runner.Runner
		// Clock injects the completion delay sleep.
		Clock  testutil.Clock
		Logger *log.Logger
		// DryRun prints the step sequence without executing anything.
		DryRun bool
		// Out receives the dry-run listing; defaults to os.Stdout.
		Out io.Writer
	}

	// Driver runs the update sequence.
	Driver struct {
		cfg    *config.Config
		disk   diskspace.Checker
		backup *backup.Orchestrator
		runner runner.Runner
		clock  testutil.Clock
		logger *log.Logger
		dryRun bool
		out    io.Writer
	}

	// step is one unit of the sequence. Fatal steps abort the update;
	// best-effort steps log a warning and continue.
	step struct {
		name  string
		fatal bool
		run   func(ctx context.Context) error
	}
)

// NewDriver creates a Driver, filling optional fields with defaults.
func NewDriver(opts Options) *Driver {
	if opts.Disk == nil {
		opts.Disk = diskspace.NewChecker()
	}
	if opts.Clock == nil {
		opts.Clock = testutil.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Driver{
		cfg:    opts.Config,
		disk:   opts.Disk,
		backup: opts.Backup,
		runner: opts.Runner,
		clock:  opts.Clock,
		logger: opts.Logger,
		dryRun: opts.DryRun,
		out:    opts.Out,
	}
}

// Run executes the update sequence, or prints it when DryRun is set.
// Fatal step failures return immediately with the source tree in whatever
// state the marker records; best-effort failures are logged and skipped.
func (d *Driver) Run(ctx context.Context) error {
	steps := d.steps()

	if d.dryRun {
		fmt.Fprintln(d.out, "stationup would run the following steps:")
		for i, s := range steps {
			mode := "best-effort"
			if s.fatal {
				mode = "required"
			}
			fmt.Fprintf(d.out, "  %2d. %-42s [%s]\n", i+1, s.name, mode)
		}
		return nil
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("update aborted before %q: %w", s.name, err)
		}

		d.logger.Debug("step", "name", s.name)
		err := s.run(ctx)
		if err == nil {
			continue
		}
		if s.fatal {
			return err
		}
		d.logger.Warn("step failed; continuing", "step", s.name, "err", err)
	}

	return nil
}

// steps builds the ordered sequence. Everything before "mark update in
// progress" leaves the source tree untouched.
func (d *Driver) steps() []step {
	cfg := d.cfg
	liveConfig := filepath.Join(cfg.SourceDir, cfg.Files.Config)
	templatePath := filepath.Join(cfg.SourceDir, cfg.Files.ConfigTemplate)

	steps := []step{
		{
			name:  "verify station source tree",
			fatal: true,
			run: func(context.Context) error {
				if !dirExists(cfg.SourceDir) {
					return issue.NewErrorContext().
						WithOperation("verify station source tree").
						WithResource(cfg.SourceDir).
						WithSuggestion("Clone the station repository to the configured source_dir").
						WithSuggestion("Or point source_dir at the existing checkout").
						Wrap(fmt.Errorf("%w: %s", ErrSourceMissing, cfg.SourceDir)).
						BuildError()
				}
				return nil
			},
		},
		{
			name:  fmt.Sprintf("check free disk space (%d MB)", cfg.RequiredFreeMB),
			fatal: true,
			run: func(context.Context) error {
				return diskspace.Ensure(d.disk, cfg.SourceDir, cfg.RequiredFreeMB)
			},
		},
		{
			name:  "prepare backup directory",
			fatal: true,
			run: func(context.Context) error {
				if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
					return issue.WrapWithOperation(err, "prepare backup directory")
				}
				return nil
			},
		},
		{
			name:  "back up critical files",
			fatal: true,
			run: func(ctx context.Context) error {
				_, err := d.backup.BackupIfNeeded(ctx)
				return err
			},
		},
		{
			name:  "verify runtime environment",
			fatal: true,
			run: func(context.Context) error {
				if !dirExists(cfg.EnvDir) {
					return issue.NewErrorContext().
						WithOperation("verify runtime environment").
						WithResource(cfg.EnvDir).
						WithSuggestion("Run the station installer once to create the environment").
						Wrap(fmt.Errorf("%w: %s", ErrEnvMissing, cfg.EnvDir)).
						BuildError()
				}
				return nil
			},
		},
		{
			name: "clean build artifacts",
			run: func(ctx context.Context) error {
				return d.runner.Run(ctx, cfg.Commands.CleanBuild)
			},
		},
		{
			name:  "mark update in progress",
			fatal: true,
			run: func(context.Context) error {
				return d.backup.MarkDestructive()
			},
		},
		{
			name: "sync source tree",
			run: func(ctx context.Context) error {
				return d.runner.Run(ctx, cfg.Commands.SyncSource)
			},
		},
		{
			name: "move live config aside as template",
			run: func(context.Context) error {
				return d.templateConfig(liveConfig, templatePath)
			},
		},
	}

	for _, pkg := range cfg.SystemPackages {
		steps = append(steps, step{
			name: fmt.Sprintf("install system package %s", pkg),
			run: func(ctx context.Context) error {
				return d.runner.Run(ctx, cfg.Commands.InstallSystemPackage, "PKG="+pkg)
			},
		})
	}

	steps = append(steps,
		step{
			name: "install dependencies",
			run: func(ctx context.Context) error {
				return d.runner.Run(ctx, cfg.Commands.InstallDeps)
			},
		},
		step{
			name: "run installer",
			run: func(ctx context.Context) error {
				return d.runner.Run(ctx, cfg.Commands.RunInstaller)
			},
		},
		step{
			name:  "restore critical files",
			fatal: true,
			run: func(ctx context.Context) error {
				return d.backup.Restore(ctx)
			},
		},
		step{
			name:  "clear update marker",
			fatal: true,
			run: func(context.Context) error {
				return d.backup.Complete()
			},
		},
		step{
			name: "completion delay",
			run: func(ctx context.Context) error {
				delay := time.Duration(cfg.CompletionDelaySeconds) * time.Second
				if delay <= 0 {
					return nil
				}
				d.logger.Info("update complete", "lingering", delay)
				return d.clock.Sleep(ctx, delay)
			},
		},
	)

	return steps
}

// templateConfig moves the live config aside so the installer regenerates a
// fresh one. The rename is best-effort; what matters is that no stale live
// config survives, so the post-rename existence check is authoritative.
func (d *Driver) templateConfig(live, template string) error {
	if _, err := os.Stat(live); os.IsNotExist(err) {
		d.logger.Info("no live config to move aside", "path", live)
		return nil
	}

	if err := os.Rename(live, template); err != nil {
		d.logger.Warn("could not move config aside", "err", err)
	}

	if _, err := os.Stat(live); err == nil {
		return fmt.Errorf("live config still present after move: %s", live)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
