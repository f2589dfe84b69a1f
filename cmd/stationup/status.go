// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"stationup/internal/diskspace"
	"stationup/internal/proclock"
	"stationup/internal/state"

	"github.com/spf13/cobra"
)

// newStatusCommand creates the `stationup status` command.
func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report update marker, lock, and disk state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showStatus(cmd.Context(), app)
		},
	}
}

func showStatus(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Station update status"))
	fmt.Fprintln(app.stdout)

	writeMarkerStatus(app.stdout, cfg.MarkerFile)
	writeLockStatus(app.stdout, cfg.LockFile)
	writeDiskStatus(app.stdout, cfg.SourceDir, cfg.RequiredFreeMB)

	return nil
}

// writeMarkerStatus reports the progress marker without creating it: a
// status query must not initialize state.
func writeMarkerStatus(w io.Writer, markerPath string) {
	if _, err := os.Stat(markerPath); os.IsNotExist(err) {
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Update marker"), SubtitleStyle.Render("absent (no update recorded)"))
		return
	}

	inProgress, err := state.NewFileStore(markerPath).InProgress()
	switch {
	case err != nil:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Update marker"), ErrorStyle.Render(fmt.Sprintf("unreadable (%v)", err)))
	case inProgress:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Update marker"),
			WarningStyle.Render("interrupted update — next run will restore from the existing backup"))
	default:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Update marker"), SuccessStyle.Render("clear"))
	}
}

func writeLockStatus(w io.Writer, lockPath string) {
	lock := proclock.New(lockPath)
	pid, ok := lock.Owner()
	switch {
	case !ok:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Instance lock"), SuccessStyle.Render("free"))
	case lock.OwnerAlive():
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Instance lock"),
			WarningStyle.Render(fmt.Sprintf("held by running pid %d", pid)))
	default:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Instance lock"),
			SubtitleStyle.Render(fmt.Sprintf("stale record (pid %d, not running)", pid)))
	}
}

func writeDiskStatus(w io.Writer, sourceDir string, requiredMB uint64) {
	freeMB, err := diskspace.NewChecker().FreeMB(sourceDir)
	switch {
	case err != nil:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Free disk space"),
			ErrorStyle.Render(fmt.Sprintf("unknown (%v)", err)))
	case freeMB < requiredMB:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Free disk space"),
			WarningStyle.Render(fmt.Sprintf("%d MB (below the %d MB required)", freeMB, requiredMB)))
	default:
		fmt.Fprintf(w, "%s: %s\n", ValueStyle.Render("Free disk space"),
			SuccessStyle.Render(fmt.Sprintf("%d MB (%d MB required)", freeMB, requiredMB)))
	}
}
