// This package implements the mount-time, per-opcode journal replay rules
// spec.md §4.4's table specifies. Every rule must be idempotent: replaying
// an already-applied operation a second time must be a safe no-op.

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// replayRules maps each OpType to the idempotent recovery action
// Journal.ReplayJournal applies to a pending entry found at mount time.
var replayRules = map[OpType]ReplayRule{
	OpCreate:      replayCreate,
	OpMkdir:       replayCreate,
	OpWrite:       replayWrite,
	OpDelete:      replayDelete,
	OpUpdateDir:   replayUpdateDir,
	OpLevelCreate: replayLevelCreate,
	OpLevelLink:   replayLevelCreate,
}

// replayCreate covers both CREATE and MKDIR: if the named entry already
// exists in the target content cluster the operation completed before the
// crash, so it is committed; otherwise the preparing writer was
// interrupted and the operation is aborted (spec.md §4.4).
func replayCreate(fs *Filesystem, je *JournalEntry) (committed bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	_, _, found, err := fs.dirStore.FindEntry(je.TargetCluster, je.MetadataString())
	log.PanicIf(err)

	return found, nil
}

// replayWrite always commits: the write-ahead record only guards intent,
// and the steady-state write path already wrote data clusters before
// logging the commit (spec.md §4.4).
func replayWrite(fs *Filesystem, je *JournalEntry) (committed bool, err error) {
	return true, nil
}

// replayDelete is naturally idempotent: if the named entry is still
// present, finish the delete by flipping it to free; if it is already
// gone, the delete already completed (spec.md §4.4).
func replayDelete(fs *Filesystem, je *JournalEntry) (committed bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, location, found, err := fs.dirStore.FindEntry(je.TargetCluster, je.MetadataString())
	log.PanicIf(err)

	if found != true {
		return true, nil
	}

	de.Type = uint8(TypeFree)

	err = fs.dirStore.WriteEntryAt(location, de)
	log.PanicIf(err)

	return true, nil
}

// replayUpdateDir commits if the target directory's content chain is
// readable end to end, and aborts otherwise (spec.md §4.4).
func replayUpdateDir(fs *Filesystem, je *JournalEntry) (committed bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	_, err = fs.dirStore.ReadEntries(je.TargetCluster)
	if err != nil {
		return false, nil
	}

	return true, nil
}

// replayLevelCreate covers both adding a fresh level and linking a shared
// one: if the named level already exists in the target level table, the
// operation completed; otherwise it was interrupted (spec.md §4.4, §4.5).
func replayLevelCreate(fs *Filesystem, je *JournalEntry) (committed bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	_, _, found, err := fs.dirStore.FindLevel(je.TargetCluster, je.MetadataString())
	log.PanicIf(err)

	return found, nil
}
