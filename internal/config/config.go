// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"stationup/internal/cueutil"
	"stationup/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "stationup"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the stationup configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("source_dir", defaults.SourceDir)
	v.SetDefault("backup_dir", defaults.BackupDir)
	v.SetDefault("env_dir", defaults.EnvDir)
	v.SetDefault("lock_file", defaults.LockFile)
	v.SetDefault("marker_file", defaults.MarkerFile)
	v.SetDefault("required_free_mb", defaults.RequiredFreeMB)
	v.SetDefault("completion_delay_seconds", defaults.CompletionDelaySeconds)
	v.SetDefault("files.config", defaults.Files.Config)
	v.SetDefault("files.mask", defaults.Files.Mask)
	v.SetDefault("files.config_template", defaults.Files.ConfigTemplate)
	v.SetDefault("transfer.attempts", defaults.Transfer.Attempts)
	v.SetDefault("transfer.backoff_seconds", defaults.Transfer.BackoffSeconds)
	v.SetDefault("commands.clean_build", defaults.Commands.CleanBuild)
	v.SetDefault("commands.sync_source", defaults.Commands.SyncSource)
	v.SetDefault("commands.install_system_package", defaults.Commands.InstallSystemPackage)
	v.SetDefault("commands.install_deps", defaults.Commands.InstallDeps)
	v.SetDefault("commands.run_installer", defaults.Commands.RunInstaller)
	v.SetDefault("system_packages", defaults.SystemPackages)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	resolvedPath := ""

	// If a custom config file path is set via --config flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'stationup config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'stationup config --help' for configuration options").
				Wrap(err).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		// Try to load CUE config file
		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", issue.NewErrorContext().
					WithOperation("load configuration").
					WithResource(cuePath).
					WithSuggestion("Check that the file contains valid CUE syntax").
					WithSuggestion("Verify the configuration values match the expected schema").
					WithSuggestion("See 'stationup config --help' for configuration options").
					Wrap(err).
					BuildError()
			}
			resolvedPath = cuePath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Re-check constraints in Go: the defaults path and partial files bypass
	// CUE, and base-name rules for critical files cannot be expressed there.
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Critical file names must be plain file names, not paths").
			WithSuggestion("Transfer attempts must be at least 1").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// This decodes to map[string]any rather than a struct so the values can be
// merged into Viper on top of the defaults, and validates with
// Concrete(false) because every config field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	// Compile the schema
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	// Compile the user's config file
	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	// Unify with schema to validate against the #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults for unset fields)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig creates a default config file if it doesn't exist
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return nil // File exists
	}

	defaults := DefaultConfig()
	cueContent := GenerateCUE(defaults)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Save writes the current configuration to file
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	cueContent := GenerateCUE(cfg)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// stationup configuration file\n\n")

	sb.WriteString(fmt.Sprintf("source_dir: %q\n", cfg.SourceDir))
	sb.WriteString(fmt.Sprintf("backup_dir: %q\n", cfg.BackupDir))
	sb.WriteString(fmt.Sprintf("env_dir: %q\n", cfg.EnvDir))
	sb.WriteString(fmt.Sprintf("lock_file: %q\n", cfg.LockFile))
	sb.WriteString(fmt.Sprintf("marker_file: %q\n", cfg.MarkerFile))
	sb.WriteString(fmt.Sprintf("required_free_mb: %d\n", cfg.RequiredFreeMB))
	sb.WriteString(fmt.Sprintf("completion_delay_seconds: %d\n", cfg.CompletionDelaySeconds))

	sb.WriteString("\nfiles: {\n")
	sb.WriteString(fmt.Sprintf("\tconfig: %q\n", cfg.Files.Config))
	sb.WriteString(fmt.Sprintf("\tmask: %q\n", cfg.Files.Mask))
	sb.WriteString(fmt.Sprintf("\tconfig_template: %q\n", cfg.Files.ConfigTemplate))
	sb.WriteString("}\n")

	sb.WriteString("\ntransfer: {\n")
	sb.WriteString(fmt.Sprintf("\tattempts: %d\n", cfg.Transfer.Attempts))
	sb.WriteString(fmt.Sprintf("\tbackoff_seconds: %d\n", cfg.Transfer.BackoffSeconds))
	sb.WriteString("}\n")

	sb.WriteString("\ncommands: {\n")
	sb.WriteString(fmt.Sprintf("\tclean_build: %q\n", cfg.Commands.CleanBuild))
	sb.WriteString(fmt.Sprintf("\tsync_source: %q\n", cfg.Commands.SyncSource))
	sb.WriteString(fmt.Sprintf("\tinstall_system_package: %q\n", cfg.Commands.InstallSystemPackage))
	sb.WriteString(fmt.Sprintf("\tinstall_deps: %q\n", cfg.Commands.InstallDeps))
	sb.WriteString(fmt.Sprintf("\trun_installer: %q\n", cfg.Commands.RunInstaller))
	sb.WriteString("}\n")

	if len(cfg.SystemPackages) > 0 {
		sb.WriteString("\nsystem_packages: [\n")
		for _, pkg := range cfg.SystemPackages {
			sb.WriteString(fmt.Sprintf("\t%q,\n", pkg))
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", cfg.UI.Verbose))
	sb.WriteString("}\n")

	return sb.String()
}
