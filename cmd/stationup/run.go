// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stationup/internal/backup"
	"stationup/internal/config"
	"stationup/internal/diskspace"
	"stationup/internal/issue"
	"stationup/internal/proclock"
	"stationup/internal/runner"
	"stationup/internal/state"
	"stationup/internal/transfer"
	"stationup/internal/update"

	"github.com/spf13/cobra"
)

// newRunCommand creates the `stationup run` command.
func newRunCommand(app *App) *cobra.Command {
	var dryRun bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Perform the station update",
		Long: `Perform the full station update sequence: preflight checks, critical-file
backup, source sync, dependency installs, installer run, and restore.

Only one instance may run at a time; a second invocation fails immediately
while the first one holds the lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd.Context(), app, dryRun)
		},
	}

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the update sequence without executing it")

	return runCmd
}

func runUpdate(ctx context.Context, app *App, dryRun bool) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	if !dryRun {
		lock := proclock.New(cfg.LockFile)
		if err := lock.Acquire(); err != nil {
			return failWithGuidance(app, err)
		}
		// Released on every exit path; termination signals cancel ctx and
		// unwind to here.
		defer func() { _ = lock.Release() }()
	}

	driver := update.NewDriver(driverOptions(app, cfg, dryRun))
	if err := driver.Run(ctx); err != nil {
		return failWithGuidance(app, err)
	}

	if !dryRun {
		fmt.Fprintln(app.stdout, SuccessStyle.Render("Update complete."))
	}
	return nil
}

// driverOptions assembles the update driver's collaborators from config.
func driverOptions(app *App, cfg *config.Config, dryRun bool) update.Options {
	store := state.NewFileStore(cfg.MarkerFile)
	copier := transfer.New(transfer.Options{
		Attempts: cfg.Transfer.Attempts,
		Backoff:  time.Duration(cfg.Transfer.BackoffSeconds) * time.Second,
	})

	// Collaborators run inside the source tree with the runtime environment
	// on PATH, so installer scripts resolve the station's own toolchain.
	envBin := filepath.Join(cfg.EnvDir, "bin")
	sh := runner.NewShellRunner(
		runner.WithDir(cfg.SourceDir),
		runner.WithEnv(
			"VIRTUAL_ENV="+cfg.EnvDir,
			"PATH="+envBin+string(os.PathListSeparator)+os.Getenv("PATH"),
		),
		runner.WithOutput(app.stdout, app.stderr),
	)

	return update.Options{
		Config: cfg,
		Backup: backup.New(copier, store, criticalPairs(cfg), app.Logger),
		Runner: sh,
		Logger: app.Logger,
		DryRun: dryRun,
		Out:    app.stdout,
	}
}

// criticalPairs builds the fixed live/backup pairs from config.
func criticalPairs(cfg *config.Config) []backup.Pair {
	return []backup.Pair{
		{
			Name:   "station config",
			Live:   filepath.Join(cfg.SourceDir, cfg.Files.Config),
			Backup: filepath.Join(cfg.BackupDir, cfg.Files.Config),
		},
		{
			Name:   "image mask",
			Live:   filepath.Join(cfg.SourceDir, cfg.Files.Mask),
			Backup: filepath.Join(cfg.BackupDir, cfg.Files.Mask),
		},
	}
}

// issueForError maps known fatal conditions to their catalog guidance.
func issueForError(err error) (issue.Id, bool) {
	switch {
	case errors.Is(err, proclock.ErrAlreadyRunning):
		return issue.AlreadyRunningId, true
	case errors.Is(err, diskspace.ErrInsufficient):
		return issue.InsufficientDiskId, true
	case errors.Is(err, update.ErrSourceMissing):
		return issue.SourceTreeMissingId, true
	case errors.Is(err, update.ErrEnvMissing):
		return issue.RuntimeEnvMissingId, true
	case errors.Is(err, transfer.ErrExhausted):
		return issue.TransferFailedId, true
	default:
		return 0, false
	}
}

// failWithGuidance prints catalog guidance for known fatal conditions, then
// the error itself, and converts it to a non-zero exit.
func failWithGuidance(app *App, err error) error {
	if id, ok := issueForError(err); ok {
		if rendered, renderErr := issue.Lookup(id).Render(); renderErr == nil {
			fmt.Fprint(app.stderr, rendered)
		}
	}
	fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	return &ExitError{Code: 1, Err: err}
}
