// This package reads and writes the level table: the chain of clusters
// holding a leveled directory's VersionEntry records (spec.md §4.5).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// LevelLocation addresses one VersionEntry slot for a later rewrite.
type LevelLocation struct {
	Cluster uint64
	Index   int
}

// DirStore reads and writes the two-tier leveled-directory representation:
// the level table (this file) and the content table (entrystore.go).
type DirStore struct {
	bd  BlockDevice
	lat *LAT
}

// NewDirStore returns a DirStore bound to the given block device and
// allocator.
func NewDirStore(bd BlockDevice, lat *LAT) *DirStore {
	return &DirStore{bd: bd, lat: lat}
}

// ReadLevels walks the level-table chain rooted at `levelTableCluster` and
// returns every active VersionEntry, in on-disk order.
func (ds *DirStore) ReadLevels(levelTableCluster uint64) (levels []*VersionEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	levels = make([]*VersionEntry, 0)

	chain, err := ds.lat.Follow(levelTableCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(ds.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < VersionEntriesPerCluster; i++ {
			raw := clusterBuffer[i*VersionEntrySize : (i+1)*VersionEntrySize]

			ve, err := UnpackVersionEntry(raw)
			log.PanicIf(err)

			if ve.IsActive() == true {
				levels = append(levels, ve)
			}
		}
	}

	return levels, nil
}

// FindLevel scans the level table for the entry bound to `name`.
func (ds *DirStore) FindLevel(levelTableCluster uint64, name string) (ve *VersionEntry, location LevelLocation, found bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain, err := ds.lat.Follow(levelTableCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(ds.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < VersionEntriesPerCluster; i++ {
			raw := clusterBuffer[i*VersionEntrySize : (i+1)*VersionEntrySize]

			candidate, err := UnpackVersionEntry(raw)
			log.PanicIf(err)

			if candidate.IsActive() == true && candidate.NameString() == name {
				return candidate, LevelLocation{Cluster: clusterNumber, Index: i}, true, nil
			}
		}
	}

	return nil, LevelLocation{}, false, nil
}

// writeVersionEntryAt rewrites a single VersionEntry slot in place.
func (ds *DirStore) writeVersionEntryAt(location LevelLocation, ve *VersionEntry) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	clusterBuffer := make([]byte, ClusterSize)

	err = ReadCluster(ds.bd, location.Cluster, clusterBuffer)
	log.PanicIf(err)

	raw, err := PackVersionEntry(ve)
	log.PanicIf(err)

	copy(clusterBuffer[location.Index*VersionEntrySize:(location.Index+1)*VersionEntrySize], raw)

	err = WriteCluster(ds.bd, location.Cluster, clusterBuffer)
	log.PanicIf(err)

	return nil
}

// findFreeLevelSlot walks the chain looking for the first inactive slot.
// If none exists, it extends the chain and returns slot 0 of the new
// cluster (spec.md §4.5).
func (ds *DirStore) findFreeLevelSlot(levelTableCluster uint64) (location LevelLocation, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain, err := ds.lat.Follow(levelTableCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(ds.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < VersionEntriesPerCluster; i++ {
			raw := clusterBuffer[i*VersionEntrySize : (i+1)*VersionEntrySize]

			ve, err := UnpackVersionEntry(raw)
			log.PanicIf(err)

			if ve.IsActive() != true {
				return LevelLocation{Cluster: clusterNumber, Index: i}, nil
			}
		}
	}

	lastCluster := chain[len(chain)-1]

	newCluster, err := ds.lat.Extend(lastCluster)
	log.PanicIf(err)

	emptyCluster := make([]byte, ClusterSize)

	err = WriteCluster(ds.bd, newCluster, emptyCluster)
	log.PanicIf(err)

	return LevelLocation{Cluster: newCluster, Index: 0}, nil
}

// AddLevel binds `name` to `contentCluster` in the level table rooted at
// `levelTableCluster`. The level name must be unique within this
// directory (spec.md §4.5). Passing a contentCluster that already backs
// another directory's level is exactly how `link` (spec.md §4.5, §4.7)
// produces a shared, DAG-forming level.
func (ds *DirStore) AddLevel(levelTableCluster uint64, name string, contentCluster uint64, flags uint32) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	err = validateName(name)
	log.PanicIf(err)

	_, _, found, err := ds.FindLevel(levelTableCluster, name)
	log.PanicIf(err)

	if found == true {
		return newErrorf(KindAlreadyExists, "level already exists: [%s]", name)
	}

	location, err := ds.findFreeLevelSlot(levelTableCluster)
	log.PanicIf(err)

	ve := &VersionEntry{
		ContentCluster: contentCluster,
		Flags:          flags,
		Active:         1,
	}

	err = ve.SetName(name)
	log.PanicIf(err)

	err = ds.writeVersionEntryAt(location, ve)
	log.PanicIf(err)

	return nil
}

// RemoveLevel deactivates the level named `name`. It refuses to remove
// "master" and never frees the content-table chain -- other directories
// may still reference it through a shared level (spec.md §4.5, §9).
func (ds *DirStore) RemoveLevel(levelTableCluster uint64, name string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if name == MasterLevelName {
		return newError(KindNotEmpty, "the master level cannot be removed")
	}

	ve, location, found, err := ds.FindLevel(levelTableCluster, name)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "level not found: [%s]", name)
	}

	ve.Active = 0

	err = ds.writeVersionEntryAt(location, ve)
	log.PanicIf(err)

	return nil
}

// RenameLevel overwrites the name field of the level bound to `oldName`.
func (ds *DirStore) RenameLevel(levelTableCluster uint64, oldName, newName string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	ve, location, found, err := ds.FindLevel(levelTableCluster, oldName)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "level not found: [%s]", oldName)
	}

	_, _, collides, err := ds.FindLevel(levelTableCluster, newName)
	log.PanicIf(err)

	if collides == true {
		return newErrorf(KindAlreadyExists, "level already exists: [%s]", newName)
	}

	err = ve.SetName(newName)
	log.PanicIf(err)

	err = ds.writeVersionEntryAt(location, ve)
	log.PanicIf(err)

	return nil
}

// AllocateEmptyChain allocates a single fresh cluster, zeroes it, and
// returns it as the head of a new one-cluster chain -- used both for a
// new level-table and a new content-table (spec.md §4.5).
func (ds *DirStore) AllocateEmptyChain() (clusterNumber uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	clusterNumber, err = ds.lat.Allocate()
	log.PanicIf(err)

	empty := make([]byte, ClusterSize)

	err = WriteCluster(ds.bd, clusterNumber, empty)
	log.PanicIf(err)

	return clusterNumber, nil
}
