// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"stationup/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `stationup config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stationup configuration",
		Long: `Manage stationup configuration.

Configuration is stored in:
  - Linux: ~/.config/stationup/config.cue
  - macOS: ~/Library/Application Support/stationup/config.cue
  - Windows: %APPDATA%\stationup\config.cue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			return initConfigFile(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	resolved, pathErr := config.ResolvedPath(config.LoadOptions{ConfigFilePath: cfgFile})
	if pathErr == nil && resolved != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", ValueStyle.Render("Config file"), resolved)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", ValueStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(app.stdout)

	show := func(key, value string) {
		fmt.Fprintf(app.stdout, "%s: %s\n", ValueStyle.Render(key), SuccessStyle.Render(value))
	}

	show("source_dir", cfg.SourceDir)
	show("backup_dir", cfg.BackupDir)
	show("env_dir", cfg.EnvDir)
	show("lock_file", cfg.LockFile)
	show("marker_file", cfg.MarkerFile)
	show("required_free_mb", fmt.Sprintf("%d", cfg.RequiredFreeMB))
	show("completion_delay_seconds", fmt.Sprintf("%d", cfg.CompletionDelaySeconds))
	show("files.config", cfg.Files.Config)
	show("files.mask", cfg.Files.Mask)
	show("files.config_template", cfg.Files.ConfigTemplate)
	show("transfer.attempts", fmt.Sprintf("%d", cfg.Transfer.Attempts))
	show("transfer.backoff_seconds", fmt.Sprintf("%d", cfg.Transfer.BackoffSeconds))
	show("system_packages", fmt.Sprintf("%v", cfg.SystemPackages))
	show("ui.verbose", fmt.Sprintf("%v", cfg.UI.Verbose))

	return nil
}

func initConfigFile(app *App) error {
	if err := config.CreateDefaultConfig(); err != nil {
		return err
	}

	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s %s\n",
		SuccessStyle.Render("Configuration initialized at"),
		ValueStyle.Render(filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)))
	return nil
}

func showConfigPath(app *App) error {
	resolved, err := config.ResolvedPath(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}

	if resolved == "" {
		cfgDir, dirErr := config.ConfigDir()
		if dirErr != nil {
			return dirErr
		}
		fmt.Fprintf(app.stdout, "%s %s\n",
			SubtitleStyle.Render("No config file found; would be created at"),
			ValueStyle.Render(filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)))
		return nil
	}

	fmt.Fprintln(app.stdout, resolved)
	return nil
}
