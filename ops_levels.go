// This package implements the level add/remove/rename and link
// user-visible verbs -- thin, journaled wrappers over DirStore (spec.md
// §4.5, §4.7).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// resolveDirectory resolves `path` to a leveled-dir DirEntry, returning an
// error if the path doesn't name one.
func (fs *Filesystem) resolveDirectory(path string) (de *DirEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	resolved, err := fs.resolver.Resolve(path)
	log.PanicIf(err)

	if resolved.Valid != true {
		return nil, newErrorf(KindNotFound, "path does not resolve: [%s]", path)
	}

	de, _, found, err := fs.dirStore.FindEntry(resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	if found != true {
		return nil, newErrorf(KindNotFound, "entry not found: [%s]", path)
	}

	if de.EntryType() != TypeLeveledDir {
		return nil, newErrorf(KindInvalidName, "not a directory: [%s]", path)
	}

	return de, nil
}

// LevelAdd allocates a fresh content-table cluster and binds `name` to it
// in the level table of the leveled directory `folder` resolves to
// (spec.md §4.5 "Add a level by name only").
func (fs *Filesystem) LevelAdd(folder, name string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, err := fs.resolveDirectory(folder)
	log.PanicIf(err)

	txID, err := fs.journal.LogOperation(OpLevelCreate, de.StartCluster, name)
	log.PanicIf(err)

	contentCluster, err := fs.dirStore.AllocateEmptyChain()
	log.PanicIf(err)

	err = fs.dirStore.AddLevel(de.StartCluster, name, contentCluster, LevelFlagActive)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}

// LevelRemove deactivates the level named `name` in `folder`, refusing to
// remove "master" and never freeing the (possibly shared) content chain
// (spec.md §4.5).
func (fs *Filesystem) LevelRemove(folder, name string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, err := fs.resolveDirectory(folder)
	log.PanicIf(err)

	txID, err := fs.journal.LogOperation(OpUpdateDir, de.StartCluster, name)
	log.PanicIf(err)

	err = fs.dirStore.RemoveLevel(de.StartCluster, name)
	if err != nil {
		fs.journal.AbortOperation(txID)
		return err
	}

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}

// LevelRename renames the level `oldName` to `newName` in `folder`
// (spec.md §4.5).
func (fs *Filesystem) LevelRename(folder, oldName, newName string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, err := fs.resolveDirectory(folder)
	log.PanicIf(err)

	txID, err := fs.journal.LogOperation(OpUpdateDir, de.StartCluster, newName)
	log.PanicIf(err)

	err = fs.dirStore.RenameLevel(de.StartCluster, oldName, newName)
	if err != nil {
		fs.journal.AbortOperation(txID)
		return err
	}

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}

// Link allocates one new content-table cluster and adds a level named
// `levelName` bound to it in both dir1 and dir2, so mutations made
// through either directory's `levelName` level are visible through the
// other -- the DAG-forming share spec.md §4.5 describes.
func (fs *Filesystem) Link(dir1, dir2, levelName string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de1, err := fs.resolveDirectory(dir1)
	log.PanicIf(err)

	de2, err := fs.resolveDirectory(dir2)
	log.PanicIf(err)

	txID, err := fs.journal.LogOperation(OpLevelLink, de1.StartCluster, levelName)
	log.PanicIf(err)

	sharedCluster, err := fs.dirStore.AllocateEmptyChain()
	log.PanicIf(err)

	err = fs.dirStore.AddLevel(de1.StartCluster, levelName, sharedCluster, LevelFlagShared)
	log.PanicIf(err)

	err = fs.dirStore.AddLevel(de2.StartCluster, levelName, sharedCluster, LevelFlagShared)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}
