// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty source dir",
			mutate:  func(c *Config) { c.SourceDir = "  " },
			wantErr: ErrInvalidPathConfig,
		},
		{
			name:    "empty lock file",
			mutate:  func(c *Config) { c.LockFile = "" },
			wantErr: ErrInvalidPathConfig,
		},
		{
			name:    "critical file with separators",
			mutate:  func(c *Config) { c.Files.Mask = "images/mask.bmp" },
			wantErr: ErrInvalidCriticalFile,
		},
		{
			name:    "empty critical file",
			mutate:  func(c *Config) { c.Files.Config = "" },
			wantErr: ErrInvalidCriticalFile,
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Transfer.Attempts = 0 },
			wantErr: ErrInvalidTransferConfig,
		},
		{
			name:    "negative backoff",
			mutate:  func(c *Config) { c.Transfer.BackoffSeconds = -1 },
			wantErr: ErrInvalidTransferConfig,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("errors.Is(err, %v) = false: %v", tc.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = false: %v", err)
			}
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SourceDir = ""
	cfg.Transfer.Attempts = 0

	err := cfg.Validate()
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("errors.As InvalidConfigError = false: %v", err)
	}
	if len(invalid.FieldErrors) != 2 {
		t.Errorf("FieldErrors count = %d, want 2", len(invalid.FieldErrors))
	}
}
