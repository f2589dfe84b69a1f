// SPDX-License-Identifier: MPL-2.0

// Package testutil provides small seams shared between production code and
// tests: an injectable Clock so retry backoff and completion delays can be
// tested without real sleeping.
package testutil
