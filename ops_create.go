// This package implements the create/mkdir user-visible verb (spec.md
// §4.7 "create").

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Create adds a new DirEntry of the given type under the directory `path`
// resolves to. Files get a single empty data cluster; leveled directories
// get a level-table cluster carrying only the reserved slots a later
// `level add` fills in -- the "master" level is not created automatically
// (spec.md §4.7: "no default master level yet").
func (fs *Filesystem) Create(entryType EntryType, path string, perms uint32) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	resolved, err := fs.resolver.Resolve(path)
	log.PanicIf(err)

	if resolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", path)
	}

	_, _, found, err := fs.dirStore.FindEntry(resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	if found == true {
		return newErrorf(KindAlreadyExists, "entry already exists: [%s]", resolved.FinalName)
	}

	opType := OpCreate
	if entryType == TypeLeveledDir {
		opType = OpMkdir
	}

	txID, err := fs.journal.LogOperation(opType, resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	de := &DirEntry{
		Type:       uint8(entryType),
		CreateTime: uint32(fs.journal.nowFunc()),
		ModTime:    uint32(fs.journal.nowFunc()),
	}

	de.SetPermissions(perms)

	err = de.SetName(resolved.FinalName)
	log.PanicIf(err)

	switch entryType {
	case TypeFile:
		startCluster, err := fs.lat.Allocate()
		log.PanicIf(err)

		de.StartCluster = startCluster
		de.Size = 0
		de.SetRefCount(1)

	case TypeLeveledDir:
		levelTableCluster, err := fs.dirStore.AllocateEmptyChain()
		log.PanicIf(err)

		de.StartCluster = levelTableCluster
		de.Size = 0

	default:
		fs.journal.AbortOperation(txID)
		return newErrorf(KindInvalidName, "unsupported entry type for create: %s", entryType)
	}

	_, err = fs.dirStore.AddEntry(resolved.ParentCluster, de)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	fs.perms.InvalidateAll()

	return nil
}
