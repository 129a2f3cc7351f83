// This package implements the write and read user-visible verbs (spec.md
// §4.7).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Write resolves `path` (creating a fresh file entry if one is not
// already present, per spec.md §4.7's "CREATE + WRITE"), then replaces
// its data chain with `data` and updates size/modTime.
func (fs *Filesystem) Write(path string, data []byte) (err error) {
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

	de, location, found, err := fs.dirStore.FindEntry(resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	if found != true {
		err = fs.Create(TypeFile, path, PermDefault)
		log.PanicIf(err)

		de, location, found, err = fs.dirStore.FindEntry(resolved.ParentCluster, resolved.FinalName)
		log.PanicIf(err)

		if found != true {
			return newErrorf(KindNotFound, "entry vanished immediately after create: [%s]", path)
		}
	}

	if de.EntryType() != TypeFile {
		return newErrorf(KindInvalidName, "not a file: [%s]", path)
	}

	txID, err := fs.journal.LogOperation(OpWrite, resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	err = fs.writeChain(de.StartCluster, data)
	log.PanicIf(err)

	de.Size = uint64(len(data))
	de.ModTime = uint32(fs.journal.nowFunc())

	err = fs.dirStore.WriteEntryAt(location, de)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	return nil
}

// Read resolves `path`, follows symlinks/hardlinks to the underlying file,
// and returns exactly its recorded size in bytes (spec.md §4.7).
func (fs *Filesystem) Read(path string) (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, _, err := fs.resolver.FollowSymlinks(path, fs.readChain)
	log.PanicIf(err)

	if de.EntryType() != TypeFile && de.EntryType() != TypeHardlink {
		return nil, newErrorf(KindInvalidName, "not a readable file: [%s]", path)
	}

	data, err = fs.readChain(de.StartCluster, de.Size)
	log.PanicIf(err)

	return data, nil
}
