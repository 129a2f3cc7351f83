// This package reads and writes the content table: the chain of clusters
// holding a leveled directory's DirEntry records (spec.md §4.5).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// EntryLocation addresses one DirEntry slot for a later rewrite.
type EntryLocation struct {
	Cluster uint64
	Index   int
}

// ReadEntries walks the content-table chain rooted at `contentCluster` and
// returns every non-free DirEntry, in on-disk order.
func (ds *DirStore) ReadEntries(contentCluster uint64) (entries []*DirEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	entries = make([]*DirEntry, 0)

	chain, err := ds.lat.Follow(contentCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(ds.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < DirEntriesPerCluster; i++ {
			raw := clusterBuffer[i*DirEntrySize : (i+1)*DirEntrySize]

			de, err := UnpackDirEntry(raw)
			log.PanicIf(err)

			if de.IsFree() != true {
				entries = append(entries, de)
			}
		}
	}

	return entries, nil
}

// FindEntry scans the content table for the entry named `name`.
func (ds *DirStore) FindEntry(contentCluster uint64, name string) (de *DirEntry, location EntryLocation, found bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain, err := ds.lat.Follow(contentCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(ds.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < DirEntriesPerCluster; i++ {
			raw := clusterBuffer[i*DirEntrySize : (i+1)*DirEntrySize]

			candidate, err := UnpackDirEntry(raw)
			log.PanicIf(err)

			if candidate.IsFree() != true && candidate.NameString() == name {
				return candidate, EntryLocation{Cluster: clusterNumber, Index: i}, true, nil
			}
		}
	}

	return nil, EntryLocation{}, false, nil
}

// WriteEntryAt rewrites a single DirEntry slot in place -- used for size,
// timestamp, attribute, and rename updates that don't change the entry's
// position in the content table.
func (ds *DirStore) WriteEntryAt(location EntryLocation, de *DirEntry) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	clusterBuffer := make([]byte, ClusterSize)

	err = ReadCluster(ds.bd, location.Cluster, clusterBuffer)
	log.PanicIf(err)

	raw, err := PackDirEntry(de)
	log.PanicIf(err)

	copy(clusterBuffer[location.Index*DirEntrySize:(location.Index+1)*DirEntrySize], raw)

	err = WriteCluster(ds.bd, location.Cluster, clusterBuffer)
	log.PanicIf(err)

	return nil
}

// findFreeEntrySlot walks the chain looking for the first free slot. If
// none exists, it extends the chain and returns slot 0 of the new cluster
// (spec.md §4.5).
func (ds *DirStore) findFreeEntrySlot(contentCluster uint64) (location EntryLocation, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain, err := ds.lat.Follow(contentCluster)
	log.PanicIf(err)

	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		err := ReadCluster(ds.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		for i := 0; i < DirEntriesPerCluster; i++ {
			raw := clusterBuffer[i*DirEntrySize : (i+1)*DirEntrySize]

			de, err := UnpackDirEntry(raw)
			log.PanicIf(err)

			if de.IsFree() == true {
				return EntryLocation{Cluster: clusterNumber, Index: i}, nil
			}
		}
	}

	lastCluster := chain[len(chain)-1]

	newCluster, err := ds.lat.Extend(lastCluster)
	log.PanicIf(err)

	emptyCluster := make([]byte, ClusterSize)

	err = WriteCluster(ds.bd, newCluster, emptyCluster)
	log.PanicIf(err)

	return EntryLocation{Cluster: newCluster, Index: 0}, nil
}

// AddEntry inserts `de` into the first free slot of the content table
// rooted at `contentCluster`, extending the chain if every existing
// cluster is full (spec.md §4.5). The caller is responsible for uniqueness
// checks against de.NameString() -- distinct operations enforce that
// differently (create refuses collisions, move/rename follow the edge-case
// rules of spec.md §6).
func (ds *DirStore) AddEntry(contentCluster uint64, de *DirEntry) (location EntryLocation, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	location, err = ds.findFreeEntrySlot(contentCluster)
	log.PanicIf(err)

	err = ds.WriteEntryAt(location, de)
	log.PanicIf(err)

	return location, nil
}

// RemoveEntry frees the slot at `location` by overwriting it with a zeroed
// (TypeFree) record. It does not touch the entry's StartCluster chain --
// callers decide whether to free data clusters based on reference counts
// (spec.md §4.6, hardlinks).
func (ds *DirStore) RemoveEntry(location EntryLocation) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	free := &DirEntry{Type: uint8(TypeFree)}

	err = ds.WriteEntryAt(location, free)
	log.PanicIf(err)

	return nil
}
