// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidCriticalFile is returned when a critical file name is empty
	// or contains path separators.
	ErrInvalidCriticalFile = errors.New("invalid critical file name")
	// ErrInvalidTransferConfig is returned when transfer bounds are out of range.
	ErrInvalidTransferConfig = errors.New("invalid transfer config")
	// ErrInvalidPathConfig is returned when a required path is whitespace-only.
	ErrInvalidPathConfig = errors.New("invalid path config")
)

type (
	// Config is the root stationup configuration.
	Config struct {
		// SourceDir is the station source tree kept up to date by git.
		SourceDir string `json:"source_dir" mapstructure:"source_dir"`
		// BackupDir holds safety copies of critical files during an update.
		BackupDir string `json:"backup_dir" mapstructure:"backup_dir"`
		// EnvDir is the language runtime environment the installer depends on.
		EnvDir string `json:"env_dir" mapstructure:"env_dir"`
		// LockFile is the path of the single-instance lock record.
		LockFile string `json:"lock_file" mapstructure:"lock_file"`
		// MarkerFile persists update progress across crashes ("0"/"1").
		MarkerFile string `json:"marker_file" mapstructure:"marker_file"`
		// RequiredFreeMB is the free space the source filesystem must have
		// before the update may start.
		RequiredFreeMB uint64 `json:"required_free_mb" mapstructure:"required_free_mb"`
		// CompletionDelaySeconds is how long to linger after a successful
		// update so attached consoles can read the final output.
		CompletionDelaySeconds int `json:"completion_delay_seconds" mapstructure:"completion_delay_seconds"`
		// Files names the user-mutable critical files inside SourceDir.
		Files FilesConfig `json:"files" mapstructure:"files"`
		// Transfer bounds the verified-copy retry loop.
		Transfer TransferConfig `json:"transfer" mapstructure:"transfer"`
		// Commands are the collaborator command lines the driver runs.
		Commands CommandsConfig `json:"commands" mapstructure:"commands"`
		// SystemPackages are installed one by one, best-effort, before the
		// language-level dependency install.
		SystemPackages []string `json:"system_packages" mapstructure:"system_packages"`
		// UI configures output behavior.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// FilesConfig names the critical files preserved across the update.
	// All names are base names resolved relative to the source tree.
	FilesConfig struct {
		// Config is the station configuration file the user edits.
		Config string `json:"config" mapstructure:"config"`
		// Mask is the user-drawn image mask.
		Mask string `json:"mask" mapstructure:"mask"`
		// ConfigTemplate is where the live config is moved aside so the
		// installer regenerates a fresh one.
		ConfigTemplate string `json:"config_template" mapstructure:"config_template"`
	}

	// TransferConfig bounds verified file copies.
	TransferConfig struct {
		// Attempts is the total number of copy attempts per file.
		Attempts int `json:"attempts" mapstructure:"attempts"`
		// BackoffSeconds is the fixed wait between attempts.
		BackoffSeconds int `json:"backoff_seconds" mapstructure:"backoff_seconds"`
	}

	// CommandsConfig holds the collaborator command lines. Each is a shell
	// command line run by the embedded interpreter in the source tree.
	CommandsConfig struct {
		// CleanBuild removes build artifacts and bytecode caches.
		CleanBuild string `json:"clean_build" mapstructure:"clean_build"`
		// SyncSource discards local changes and pulls the latest source.
		SyncSource string `json:"sync_source" mapstructure:"sync_source"`
		// InstallSystemPackage installs one OS package; the package name is
		// passed in the PKG environment variable.
		InstallSystemPackage string `json:"install_system_package" mapstructure:"install_system_package"`
		// InstallDeps installs language-level dependencies.
		InstallDeps string `json:"install_deps" mapstructure:"install_deps"`
		// RunInstaller runs the station installer entry point.
		RunInstaller string `json:"run_installer" mapstructure:"run_installer"`
	}

	// UIConfig configures output behavior.
	UIConfig struct {
		// Verbose enables debug-level logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidConfigError aggregates all validation failures for a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error so errors.Is()
// matches both the aggregate sentinel and the specific failures.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks constraints the CUE schema cannot express (the defaults
// path bypasses CUE entirely, so everything is re-checked here).
func (c *Config) Validate() error {
	var errs []error

	for field, value := range map[string]string{
		"source_dir": c.SourceDir,
		"backup_dir": c.BackupDir,
		"env_dir":    c.EnvDir,
		"lock_file":  c.LockFile,
	} {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s must not be empty", ErrInvalidPathConfig, field))
		}
	}

	for field, name := range map[string]string{
		"files.config":          c.Files.Config,
		"files.mask":            c.Files.Mask,
		"files.config_template": c.Files.ConfigTemplate,
	} {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("%w: %s must not be empty", ErrInvalidCriticalFile, field))
			continue
		}
		if name != filepath.Base(name) {
			errs = append(errs, fmt.Errorf("%w: %s must be a base name, got %q", ErrInvalidCriticalFile, field, name))
		}
	}

	if c.Transfer.Attempts < 1 {
		errs = append(errs, fmt.Errorf("%w: attempts must be >= 1, got %d", ErrInvalidTransferConfig, c.Transfer.Attempts))
	}
	if c.Transfer.BackoffSeconds < 0 {
		errs = append(errs, fmt.Errorf("%w: backoff_seconds must be >= 0, got %d", ErrInvalidTransferConfig, c.Transfer.BackoffSeconds))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the built-in configuration. Paths are derived from
// the user's home directory; when the home directory cannot be resolved the
// current directory is used so that explicit config files still work.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	backupDir := filepath.Join(home, "station-backup")

	return &Config{
		SourceDir:              filepath.Join(home, "station"),
		BackupDir:              backupDir,
		EnvDir:                 filepath.Join(home, "station-env"),
		LockFile:               filepath.Join(os.TempDir(), "stationup.lock"),
		MarkerFile:             filepath.Join(backupDir, "update_in_progress"),
		RequiredFreeMB:         500,
		CompletionDelaySeconds: 5,
		Files: FilesConfig{
			Config:         ".config",
			Mask:           "mask.bmp",
			ConfigTemplate: ".config_template",
		},
		Transfer: TransferConfig{
			Attempts:       3,
			BackoffSeconds: 2,
		},
		Commands: CommandsConfig{
			CleanBuild:           "rm -rf build && find . -type d -name __pycache__ -exec rm -rf {} +",
			SyncSource:           "git reset --hard && git pull",
			InstallSystemPackage: `sudo apt-get install -y "$PKG"`,
			InstallDeps:          "pip3 install -r requirements.txt",
			RunInstaller:         "bash install.sh",
		},
		SystemPackages: []string{},
		UI: UIConfig{
			Verbose: false,
		},
	}
}
