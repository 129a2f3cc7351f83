// This package implements the symlink and hardlink user-visible verbs
// (spec.md §4.7).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// maxSymlinkTargetLength bounds the target string a symlink cluster may
// hold, including its NUL terminator (spec.md §4.7).
const maxSymlinkTargetLength = 4096

// Symlink creates a symlink entry at linkPath whose single data cluster
// holds the literal target string. The target is not validated against
// the tree at creation time -- a dangling symlink is a read-time error,
// not a create-time one (spec.md §6, §8: "broken symlink").
func (fs *Filesystem) Symlink(target, linkPath string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(target)+1 > maxSymlinkTargetLength {
		return newErrorf(KindInvalidName, "symlink target exceeds (%d) bytes: [%s]", maxSymlinkTargetLength, target)
	}

	resolved, err := fs.resolver.Resolve(linkPath)
	log.PanicIf(err)

	if resolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", linkPath)
	}

	_, _, found, err := fs.dirStore.FindEntry(resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	if found == true {
		return newErrorf(KindAlreadyExists, "entry already exists: [%s]", resolved.FinalName)
	}

	txID, err := fs.journal.LogOperation(OpCreate, resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	startCluster, err := fs.lat.Allocate()
	log.PanicIf(err)

	payload := make([]byte, len(target)+1)
	copy(payload, []byte(target))

	err = fs.writeChain(startCluster, payload)
	log.PanicIf(err)

	de := &DirEntry{
		Type:         uint8(TypeSymlink),
		StartCluster: startCluster,
		Size:         uint64(len(target)),
		CreateTime:   uint32(fs.journal.nowFunc()),
		ModTime:      uint32(fs.journal.nowFunc()),
	}

	de.SetPermissions(PermDefault)

	err = de.SetName(resolved.FinalName)
	log.PanicIf(err)

	_, err = fs.dirStore.AddEntry(resolved.ParentCluster, de)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}

// Hardlink resolves `target`, requires it to name a plain file, increments
// its shared reference count, and creates a new DirEntry of type
// hardlink at linkPath pointing at the same data chain (spec.md §4.7).
func (fs *Filesystem) Hardlink(target, linkPath string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	targetResolved, err := fs.resolver.Resolve(target)
	log.PanicIf(err)

	if targetResolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", target)
	}

	targetDE, targetLocation, found, err := fs.dirStore.FindEntry(targetResolved.ParentCluster, targetResolved.FinalName)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "entry not found: [%s]", target)
	}

	if targetDE.EntryType() != TypeFile {
		return newErrorf(KindInvalidName, "hardlink target must be a file: [%s]", target)
	}

	linkResolved, err := fs.resolver.Resolve(linkPath)
	log.PanicIf(err)

	if linkResolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", linkPath)
	}

	_, _, collides, err := fs.dirStore.FindEntry(linkResolved.ParentCluster, linkResolved.FinalName)
	log.PanicIf(err)

	if collides == true {
		return newErrorf(KindAlreadyExists, "entry already exists: [%s]", linkPath)
	}

	txID, err := fs.journal.LogOperation(OpCreate, linkResolved.ParentCluster, linkResolved.FinalName)
	log.PanicIf(err)

	currentCount := targetDE.RefCount()
	if currentCount == 0 {
		currentCount = 1
	}

	targetDE.SetRefCount(currentCount + 1)

	err = fs.dirStore.WriteEntryAt(targetLocation, targetDE)
	log.PanicIf(err)

	linkDE := &DirEntry{
		Type:         uint8(TypeHardlink),
		StartCluster: targetDE.StartCluster,
		Size:         targetDE.Size,
		CreateTime:   uint32(fs.journal.nowFunc()),
		ModTime:      uint32(fs.journal.nowFunc()),
	}

	linkDE.SetPermissions(targetDE.Permissions())
	linkDE.SetRefCount(currentCount + 1)

	err = linkDE.SetName(linkResolved.FinalName)
	log.PanicIf(err)

	_, err = fs.dirStore.AddEntry(linkResolved.ParentCluster, linkDE)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}
