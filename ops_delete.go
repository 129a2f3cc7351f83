// This package implements the del user-visible verb, including the
// recursive-vs-NotEmpty rule for leveled directories and the
// tree-wide reference-count bookkeeping hardlinks require (spec.md §4.7).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Del resolves `path` and removes it. Deleting a leveled directory with
// any active level requires recursive=true; deleting a file or hardlink
// decrements the shared reference count across every entry in the tree
// that points at the same data chain, freeing that chain only once the
// count reaches zero (spec.md §4.7).
func (fs *Filesystem) Del(path string, recursive bool) (err error) {
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
		return newErrorf(KindNotFound, "entry not found: [%s]", resolved.FinalName)
	}

	txID, err := fs.journal.LogOperation(OpDelete, resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	switch de.EntryType() {
	case TypeLeveledDir:
		levels, err := fs.dirStore.ReadLevels(de.StartCluster)
		log.PanicIf(err)

		if len(levels) > 0 && recursive != true {
			fs.journal.AbortOperation(txID)
			return newErrorf(KindNotEmpty, "directory has active levels: [%s]", resolved.FinalName)
		}

		if recursive == true {
			for _, ve := range levels {
				err := fs.deleteContentTreeRecursive(ve.ContentCluster)
				log.PanicIf(err)
			}
		}

	case TypeFile, TypeHardlink:
		err = fs.releaseDataChain(de.StartCluster)
		log.PanicIf(err)

	case TypeSymlink:
		err = fs.lat.FreeChain(de.StartCluster)
		log.PanicIf(err)
	}

	de.Type = uint8(TypeFree)

	err = fs.dirStore.WriteEntryAt(location, de)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	fs.perms.InvalidateAll()

	return nil
}

// deleteContentTreeRecursive removes every entry in the content table at
// `contentCluster`, recursing into leveled-dir children first.
func (fs *Filesystem) deleteContentTreeRecursive(contentCluster uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	entries, err := fs.dirStore.ReadEntries(contentCluster)
	log.PanicIf(err)

	for _, de := range entries {
		switch de.EntryType() {
		case TypeLeveledDir:
			levels, err := fs.dirStore.ReadLevels(de.StartCluster)
			log.PanicIf(err)

			for _, ve := range levels {
				err := fs.deleteContentTreeRecursive(ve.ContentCluster)
				log.PanicIf(err)
			}

		case TypeFile, TypeHardlink:
			err := fs.releaseDataChain(de.StartCluster)
			log.PanicIf(err)

		case TypeSymlink:
			err := fs.lat.FreeChain(de.StartCluster)
			log.PanicIf(err)
		}
	}

	return nil
}

// releaseDataChain implements the shared reference-count rule: if the
// chain's current count (read off the entry being removed) is greater
// than one, every entry across the whole tree that shares this data
// cluster has its overlaid count decremented; otherwise the chain is
// freed outright (spec.md §4.7, §4.6 "Special entity: hardlink reference
// count").
func (fs *Filesystem) releaseDataChain(startCluster uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	rootContentCluster, err := fs.rootContentCluster()
	log.PanicIf(err)

	sharers, err := fs.findSharingEntries(rootContentCluster, startCluster, make(map[uint64]bool))
	log.PanicIf(err)

	currentCount := uint32(1)
	if len(sharers) > 0 {
		_, firstDE, err := fs.readEntryAt(sharers[0])
		log.PanicIf(err)

		currentCount = firstDE.RefCount()
		if currentCount == 0 {
			currentCount = 1
		}
	}

	if currentCount > 1 {
		for _, location := range sharers {
			_, de, err := fs.readEntryAt(location)
			log.PanicIf(err)

			de.SetRefCount(currentCount - 1)

			err = fs.dirStore.WriteEntryAt(location, de)
			log.PanicIf(err)
		}

		return nil
	}

	err = fs.lat.FreeChain(startCluster)
	log.PanicIf(err)

	return nil
}

func (fs *Filesystem) readEntryAt(location EntryLocation) (cluster uint64, de *DirEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	clusterBuffer := make([]byte, ClusterSize)

	err = ReadCluster(fs.bd, location.Cluster, clusterBuffer)
	log.PanicIf(err)

	raw := clusterBuffer[location.Index*DirEntrySize : (location.Index+1)*DirEntrySize]

	de, err = UnpackDirEntry(raw)
	log.PanicIf(err)

	return location.Cluster, de, nil
}

// findSharingEntries walks the whole leveled-directory tree from
// `contentCluster`, following every active level of every leveled
// directory, and collects the location of every file/hardlink DirEntry
// whose StartCluster equals `targetCluster`. `visited` guards against the
// DAG producing an infinite walk when levels are shared.
func (fs *Filesystem) findSharingEntries(contentCluster uint64, targetCluster uint64, visited map[uint64]bool) (locations []EntryLocation, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if visited[contentCluster] == true {
		return nil, nil
	}
	visited[contentCluster] = true

	chain, err := fs.lat.Follow(contentCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(fs.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < DirEntriesPerCluster; i++ {
			raw := clusterBuffer[i*DirEntrySize : (i+1)*DirEntrySize]

			de, err := UnpackDirEntry(raw)
			log.PanicIf(err)

			if de.IsFree() == true {
				continue
			}

			if (de.EntryType() == TypeFile || de.EntryType() == TypeHardlink) && de.StartCluster == targetCluster {
				locations = append(locations, EntryLocation{Cluster: clusterNumber, Index: i})
			}

			if de.EntryType() == TypeLeveledDir {
				levels, err := fs.dirStore.ReadLevels(de.StartCluster)
				log.PanicIf(err)

				for _, ve := range levels {
					sub, err := fs.findSharingEntries(ve.ContentCluster, targetCluster, visited)
					log.PanicIf(err)

					locations = append(locations, sub...)
				}
			}
		}
	}

	return locations, nil
}
