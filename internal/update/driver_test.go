// SPDX-License-Identifier: MPL-2.0

package update

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stationup/internal/backup"
	"stationup/internal/config"
	"stationup/internal/diskspace"
	"stationup/internal/state"
	"stationup/internal/testutil"
	"stationup/internal/transfer"

	"github.com/charmbracelet/log"
)

type call struct {
	command  string
	extraEnv []string
}

// fakeRunner records collaborator invocations and fails configured commands.
type fakeRunner struct {
	calls []call
	fail  map[string]error
}

func (r *fakeRunner) Run(_ context.Context, command string, extraEnv ...string) error {
	r.calls = append(r.calls, call{command: command, extraEnv: extraEnv})
	if err := r.fail[command]; err != nil {
		return err
	}
	return nil
}

func (r *fakeRunner) commands() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.command
	}
	return out
}

type fakeDisk struct {
	free uint64
	err  error
}

func (f fakeDisk) FreeMB(string) (uint64, error) {
	return f.free, f.err
}

type fixture struct {
	cfg    *config.Config
	store  *state.MemStore
	runner *fakeRunner
	clock  *testutil.FakeClock
	out    bytes.Buffer

	liveConfig   string
	liveMask     string
	backupConfig string
	backupMask   string
	template     string
}

// newFixture lays out a station checkout with live critical files and wires
// a driver against in-memory fakes. Mutate f.cfg before calling driver.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	f := &fixture{
		cfg:    config.DefaultConfig(),
		store:  state.NewMemStore(),
		runner: &fakeRunner{fail: map[string]error{}},
		clock:  testutil.NewFakeClock(time.Unix(1700000000, 0)),
	}

	f.cfg.SourceDir = filepath.Join(root, "station")
	f.cfg.EnvDir = filepath.Join(root, "env")
	f.cfg.BackupDir = filepath.Join(root, "backup")
	f.cfg.RequiredFreeMB = 500
	f.cfg.CompletionDelaySeconds = 3
	f.cfg.SystemPackages = []string{"libopenjp2-7", "python3-pip"}
	f.cfg.Commands = config.CommandsConfig{
		CleanBuild:           "clean",
		SyncSource:           "sync",
		InstallSystemPackage: "install-pkg",
		InstallDeps:          "install-deps",
		RunInstaller:         "installer",
	}

	for _, dir := range []string{f.cfg.SourceDir, f.cfg.EnvDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	f.liveConfig = filepath.Join(f.cfg.SourceDir, f.cfg.Files.Config)
	f.liveMask = filepath.Join(f.cfg.SourceDir, f.cfg.Files.Mask)
	f.backupConfig = filepath.Join(f.cfg.BackupDir, f.cfg.Files.Config)
	f.backupMask = filepath.Join(f.cfg.BackupDir, f.cfg.Files.Mask)
	f.template = filepath.Join(f.cfg.SourceDir, f.cfg.Files.ConfigTemplate)

	writeFile(t, f.liveConfig, "config-v1")
	writeFile(t, f.liveMask, "mask-v1")

	return f
}

func (f *fixture) driver(t *testing.T, opts ...func(*Options)) *Driver {
	t.Helper()
	logger := log.New(io.Discard)

	pairs := []backup.Pair{
		{Name: "station config", Live: f.liveConfig, Backup: f.backupConfig},
		{Name: "image mask", Live: f.liveMask, Backup: f.backupMask},
	}
	copier := transfer.New(transfer.Options{Attempts: 1, Clock: f.clock})
	orch := backup.New(copier, f.store, pairs, logger)

	o := Options{
		Config: f.cfg,
		Disk:   fakeDisk{free: 10_000},
		Backup: orch,
		Runner: f.runner,
		Clock:  f.clock,
		Logger: logger,
		Out:    &f.out,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewDriver(o)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRunFullSequence(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"clean", "sync", "install-pkg", "install-pkg", "install-deps", "installer"}
	got := f.runner.commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commands[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Critical files survived the cycle.
	if got := readFile(t, f.liveConfig); got != "config-v1" {
		t.Errorf("restored config = %q, want config-v1", got)
	}
	if got := readFile(t, f.liveMask); got != "mask-v1" {
		t.Errorf("restored mask = %q, want mask-v1", got)
	}
	// Live config was moved aside before the installer ran.
	if got := readFile(t, f.template); got != "config-v1" {
		t.Errorf("template = %q, want config-v1", got)
	}

	if inProgress, _ := f.store.InProgress(); inProgress {
		t.Error("marker still set after successful run")
	}

	slept := f.clock.Slept()
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Errorf("Slept() = %v, want [3s]", slept)
	}
}

func TestRunPassesPackageEnv(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var pkgs []string
	for _, c := range f.runner.calls {
		if c.command != "install-pkg" {
			continue
		}
		if len(c.extraEnv) != 1 || !strings.HasPrefix(c.extraEnv[0], "PKG=") {
			t.Fatalf("install-pkg extraEnv = %v, want single PKG= entry", c.extraEnv)
		}
		pkgs = append(pkgs, strings.TrimPrefix(c.extraEnv[0], "PKG="))
	}
	if len(pkgs) != 2 || pkgs[0] != "libopenjp2-7" || pkgs[1] != "python3-pip" {
		t.Errorf("installed packages = %v, want [libopenjp2-7 python3-pip]", pkgs)
	}
}

func TestRunMissingSourceTreeIsFatal(t *testing.T) {
	f := newFixture(t)
	if err := os.RemoveAll(f.cfg.SourceDir); err != nil {
		t.Fatalf("remove source dir: %v", err)
	}
	d := f.driver(t)

	err := d.Run(context.Background())
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("Run = %v, want ErrSourceMissing", err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("collaborators ran despite missing source tree: %v", f.runner.commands())
	}
	if inProgress, _ := f.store.InProgress(); inProgress {
		t.Error("marker set despite aborted preflight")
	}
}

func TestRunInsufficientDiskIsFatal(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, func(o *Options) {
		o.Disk = fakeDisk{free: f.cfg.RequiredFreeMB - 1}
	})

	err := d.Run(context.Background())
	if !errors.Is(err, diskspace.ErrInsufficient) {
		t.Fatalf("Run = %v, want ErrInsufficient", err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("collaborators ran despite insufficient disk: %v", f.runner.commands())
	}
}

func TestRunMissingEnvIsFatal(t *testing.T) {
	f := newFixture(t)
	if err := os.RemoveAll(f.cfg.EnvDir); err != nil {
		t.Fatalf("remove env dir: %v", err)
	}
	d := f.driver(t)

	err := d.Run(context.Background())
	if !errors.Is(err, ErrEnvMissing) {
		t.Fatalf("Run = %v, want ErrEnvMissing", err)
	}
	// Nothing destructive happened: marker clear, live files intact.
	if inProgress, _ := f.store.InProgress(); inProgress {
		t.Error("marker set despite aborted preflight")
	}
	if got := readFile(t, f.liveConfig); got != "config-v1" {
		t.Errorf("live config = %q, want untouched config-v1", got)
	}
	// The backup was still captured before the env check.
	if got := readFile(t, f.backupConfig); got != "config-v1" {
		t.Errorf("backup config = %q, want config-v1", got)
	}
}

func TestRunInterruptedMarkerKeepsExistingBackup(t *testing.T) {
	f := newFixture(t)

	// A previous run backed up the originals, then crashed mid-update
	// leaving a half-written live config behind.
	writeFile(t, f.backupConfig, "config-original")
	writeFile(t, f.backupMask, "mask-original")
	writeFile(t, f.liveConfig, "config-halfwritten")
	if err := f.store.SetInProgress(true); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	d := f.driver(t)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := readFile(t, f.liveConfig); got != "config-original" {
		t.Errorf("restored config = %q, want config-original from prior backup", got)
	}
	if got := readFile(t, f.liveMask); got != "mask-original" {
		t.Errorf("restored mask = %q, want mask-original from prior backup", got)
	}
	if inProgress, _ := f.store.InProgress(); inProgress {
		t.Error("marker still set after recovery run")
	}
}

func TestRunBestEffortStepFailuresContinue(t *testing.T) {
	f := newFixture(t)
	f.runner.fail["clean"] = errors.New("rm: permission denied")
	f.runner.fail["install-pkg"] = errors.New("apt: mirror unreachable")
	d := f.driver(t)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The sequence still reached the installer and the restore.
	got := f.runner.commands()
	if got[len(got)-1] != "installer" {
		t.Errorf("last command = %q, want installer", got[len(got)-1])
	}
	if got := readFile(t, f.liveConfig); got != "config-v1" {
		t.Errorf("restored config = %q, want config-v1", got)
	}
	if inProgress, _ := f.store.InProgress(); inProgress {
		t.Error("marker still set after run")
	}
}

func TestRunDryRunExecutesNothing(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, func(o *Options) { o.DryRun = true })

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run dry: %v", err)
	}

	if len(f.runner.calls) != 0 {
		t.Errorf("dry run executed collaborators: %v", f.runner.commands())
	}
	if _, err := os.Stat(f.cfg.BackupDir); !os.IsNotExist(err) {
		t.Error("dry run created the backup directory")
	}

	listing := f.out.String()
	for _, want := range []string{
		"verify station source tree",
		"check free disk space (500 MB)",
		"install system package libopenjp2-7",
		"restore critical files",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("dry-run listing missing %q:\n%s", want, listing)
		}
	}
}

func TestRunCanceledContextAborts(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("collaborators ran despite canceled context: %v", f.runner.commands())
	}
}

func TestTemplateMoveSkipsAbsentConfig(t *testing.T) {
	f := newFixture(t)
	if err := os.Remove(f.liveConfig); err != nil {
		t.Fatalf("remove live config: %v", err)
	}
	d := f.driver(t)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(f.template); !os.IsNotExist(err) {
		t.Error("template created from a nonexistent live config")
	}
}

func TestRunZeroCompletionDelaySkipsSleep(t *testing.T) {
	f := newFixture(t)
	f.cfg.CompletionDelaySeconds = 0
	d := f.driver(t)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if slept := f.clock.Slept(); len(slept) != 0 {
		t.Errorf("Slept() = %v, want none", slept)
	}
}
