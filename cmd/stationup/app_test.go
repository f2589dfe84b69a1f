// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"os"
	"testing"

	"stationup/internal/config"

	"github.com/charmbracelet/log"
)

func TestNewAppFillsDefaults(t *testing.T) {
	app := NewApp(Dependencies{})

	if app.Config == nil {
		t.Error("Config not defaulted")
	}
	if app.Logger == nil {
		t.Error("Logger not defaulted")
	}
	if app.stdout != os.Stdout || app.stderr != os.Stderr {
		t.Error("streams not defaulted to os.Stdout/os.Stderr")
	}
}

func TestLoadConfigAppliesVerboseFlag(t *testing.T) {
	cfg := config.DefaultConfig()
	app, _, _ := testApp(cfg)

	verbose = true
	t.Cleanup(func() { verbose = false })

	got, err := app.loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !got.UI.Verbose {
		t.Error("UI.Verbose not raised by --verbose flag")
	}
	if app.Logger.GetLevel() != log.DebugLevel {
		t.Errorf("logger level = %v, want debug", app.Logger.GetLevel())
	}
}

func TestNewRootCommandWiresSubcommands(t *testing.T) {
	app := NewApp(Dependencies{Config: staticProvider{cfg: config.DefaultConfig()}})
	root := newRootCommand(app)

	for _, want := range []string{"run", "status", "config"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}
