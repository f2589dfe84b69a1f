// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates stationup configuration.
//
// Configuration lives in a single CUE file resolved from the platform config
// directory (XDG on Linux, %APPDATA% on Windows, ~/Library/Application
// Support on macOS), or from an explicit path. The file is validated against
// an embedded CUE schema and merged into Viper on top of the built-in
// defaults, so a missing or partial config file is never an error.
//
// Load configuration through the Provider interface so commands and tests
// can inject explicit LoadOptions instead of touching package state.
package config
