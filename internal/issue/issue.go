// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies a known fatal condition in the catalog.
type Id int

const (
	AlreadyRunningId Id = iota + 1
	InsufficientDiskId
	SourceTreeMissingId
	RuntimeEnvMissingId
	TransferFailedId
)

// Issue pairs a known fatal condition with markdown guidance for the
// operator. Fatal conditions terminate the update; the guidance explains
// what state the installation was left in and what to do next.
type Issue struct {
	id    Id
	mdMsg string
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() string {
	return i.mdMsg
}

// Render returns the issue guidance rendered for terminal display.
func (i *Issue) Render() (string, error) {
	return render(i.mdMsg)
}

// render is a seam so tests can bypass terminal detection.
var render = func(in string) (string, error) {
	return glamour.Render(in, "auto")
}

// Lookup returns the catalog entry for id, or nil if none is registered.
func Lookup(id Id) *Issue {
	return catalog[id]
}

// Ids returns all registered issue ids in ascending order.
func Ids() []Id {
	ids := maps.Keys(catalog)
	slices.Sort(ids)
	return ids
}

var catalog = map[Id]*Issue{
	AlreadyRunningId: {
		id: AlreadyRunningId,
		mdMsg: `
# Another update is already running!

A live stationup process holds the update lock, so this run stopped before
touching any files.

## Things you can try:
- Wait for the other update to finish, then re-run:
~~~
$ stationup run
~~~
- Check the lock holder:
~~~
$ stationup status
~~~`,
	},

	InsufficientDiskId: {
		id: InsufficientDiskId,
		mdMsg: `
# Not enough free disk space!

The update needs a minimum amount of free space before it will touch the
source tree. Nothing was modified.

## Things you can try:
- Free up space on the source filesystem and re-run
- Lower the threshold in the config if you know what you are doing:
~~~
$ stationup config show
~~~`,
	},

	SourceTreeMissingId: {
		id: SourceTreeMissingId,
		mdMsg: `
# Source tree not found!

The configured source directory does not exist, so there is nothing to
update. Nothing was modified.

## Things you can try:
- Verify the path:
~~~
$ stationup config show
~~~
- Point source_dir at the station installation in your config file`,
	},

	RuntimeEnvMissingId: {
		id: RuntimeEnvMissingId,
		mdMsg: `
# Runtime environment not found!

The configured runtime environment directory does not exist. Dependency
installation would fail, so the update stopped before the destructive phase.

## Things you can try:
- Recreate the environment, then re-run the update
- Verify env_dir in your config file:
~~~
$ stationup config show
~~~`,
	},

	TransferFailedId: {
		id: TransferFailedId,
		mdMsg: `
# A verified file transfer failed!

Copying a critical file did not produce a byte-identical result after all
retry attempts. The destination was left untouched and the update aborted.

If this happened during restore, the update-in-progress marker is still
set: re-running stationup will skip the backup step and restore from the
existing backup, which still holds your pre-update files.

## Things you can try:
- Check the disk for errors and free space, then re-run:
~~~
$ stationup run
~~~`,
	},
}
