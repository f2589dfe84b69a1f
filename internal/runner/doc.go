// SPDX-License-Identifier: MPL-2.0

// Package runner executes the updater's external collaborators — source
// control, package managers, the installer entry point — as configured
// shell command lines. The updater only needs an invocable command and a
// success/failure signal from each; output is streamed, never parsed.
package runner
