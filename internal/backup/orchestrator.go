// SPDX-License-Identifier: MPL-2.0

package backup

import (
	"context"
	"fmt"
	"os"

	"stationup/internal/issue"
	"stationup/internal/state"

	"github.com/charmbracelet/log"
)

type (
	// Pair is a critical file tracked across the update: the live path in
	// the source tree and its backup counterpart.
	Pair struct {
		// Name labels the pair in log output (e.g., "station config").
		Name string
		// Live is the file's path inside the source tree.
		Live string
		// Backup is the durable copy's path inside the backup directory.
		Backup string
	}

	// Copier is the verified-transfer dependency.
	Copier interface {
		Copy(ctx context.Context, src, dst string) error
	}

	// Orchestrator drives the two-phase backup/restore cycle over a fixed
	// set of critical file pairs.
	Orchestrator struct {
		copier Copier
		store  state.Store
		pairs  []Pair
		logger *log.Logger
	}
)

// New creates an Orchestrator. A nil logger defaults to the standard one.
func New(copier Copier, store state.Store, pairs []Pair, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		copier: copier,
		store:  store,
		pairs:  pairs,
		logger: logger,
	}
}

// BackupIfNeeded captures the live critical files unless the marker says a
// previous run was interrupted mid-update, in which case the existing
// backup already holds the pre-update originals and must not be
// overwritten. Returns whether the backup step was skipped.
func (o *Orchestrator) BackupIfNeeded(ctx context.Context) (skipped bool, err error) {
	inProgress, err := o.store.InProgress()
	if err != nil {
		return false, issue.WrapWithOperation(err, "read update-progress marker")
	}
	if inProgress {
		o.logger.Warn("previous update was interrupted; keeping existing backup as the restore source")
		return true, nil
	}

	for _, pair := range o.pairs {
		if _, statErr := os.Stat(pair.Live); os.IsNotExist(statErr) {
			// First-time setups have no live file yet; nothing to capture.
			o.logger.Info("no live file to back up", "file", pair.Name, "path", pair.Live)
			continue
		}

		o.logger.Info("backing up", "file", pair.Name, "from", pair.Live, "to", pair.Backup)
		if err := o.copier.Copy(ctx, pair.Live, pair.Backup); err != nil {
			return false, issue.NewErrorContext().
				WithOperation(fmt.Sprintf("back up %s", pair.Name)).
				WithResource(pair.Live).
				WithSuggestion("Check free space and permissions on the backup directory").
				Wrap(err).
				BuildError()
		}
	}

	return false, nil
}

// MarkDestructive persists the in-progress marker. Called immediately
// before the first destructive source-tree mutation.
func (o *Orchestrator) MarkDestructive() error {
	if err := o.store.SetInProgress(true); err != nil {
		return issue.WrapWithOperation(err, "persist update-in-progress marker")
	}
	return nil
}

// Restore copies every existing backup over its live path. Missing backups
// are skipped; downstream installation regenerates defaults for those.
func (o *Orchestrator) Restore(ctx context.Context) error {
	for _, pair := range o.pairs {
		if _, statErr := os.Stat(pair.Backup); os.IsNotExist(statErr) {
			o.logger.Info("no backup to restore; installer will generate a default", "file", pair.Name)
			continue
		}

		o.logger.Info("restoring", "file", pair.Name, "from", pair.Backup, "to", pair.Live)
		if err := o.copier.Copy(ctx, pair.Backup, pair.Live); err != nil {
			return issue.NewErrorContext().
				WithOperation(fmt.Sprintf("restore %s", pair.Name)).
				WithResource(pair.Backup).
				WithSuggestion("Re-run stationup; the backup still holds the pre-update file").
				Wrap(err).
				BuildError()
		}
	}

	return nil
}

// Complete clears the marker. Called only after Restore succeeded.
func (o *Orchestrator) Complete() error {
	if err := o.store.SetInProgress(false); err != nil {
		return issue.WrapWithOperation(err, "clear update-in-progress marker")
	}
	return nil
}
