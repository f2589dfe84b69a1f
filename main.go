// SPDX-License-Identifier: MPL-2.0

// Command stationup performs crash-safe in-place updates of a locally
// installed station deployment.
package main

import cmd "stationup/cmd/stationup"

func main() {
	cmd.Execute()
}
