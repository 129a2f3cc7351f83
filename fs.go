// This package assembles the on-disk subsystems (block device, superblock,
// LAT, journal, directory/level store) into the single mounted filesystem
// handle every operation in ops_*.go is a method of (spec.md §4, §4.7).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Filesystem is a single mounted LFS volume. It owns every subsystem
// (block device, superblock, LAT, journal, directory store) and the
// shell-facing Resolver that tracks the interactive "current directory".
type Filesystem struct {
	bd  BlockDevice
	sbm *SuperBlockManager
	sb  *SuperBlock

	lat      *LAT
	journal  *Journal
	dirStore *DirStore

	resolver *Resolver
	perms    *PermissionCache
}

// Mount reads the superblock (falling back to its backup copy if needed),
// rebuilds the LAT/journal/directory-store handles from it, recovers the
// journal's write head, and replays any pending transactions left over
// from an unclean shutdown (spec.md §4.2, §4.4).
func Mount(bd BlockDevice) (fs *Filesystem, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	sbm := NewSuperBlockManager(bd)

	sb, err := sbm.Mount()
	log.PanicIf(err)

	reservedMax := sb.JournalStartCluster + ceilDiv(sb.JournalSectorCount, SectorsPerCluster) + 2

	lat := NewLAT(bd, sb.LatStartCluster, sb.LatSectorCount, reservedMax)
	journal := NewJournal(bd, sbm, sb)
	dirStore := NewDirStore(bd, lat)
	resolver := NewResolver(dirStore, 0)

	fs = &Filesystem{
		bd:       bd,
		sbm:      sbm,
		sb:       sb,
		lat:      lat,
		journal:  journal,
		dirStore: dirStore,
		resolver: resolver,
		perms:    NewPermissionCache(),
	}

	err = journal.RecoverHead()
	log.PanicIf(err)

	rootContentCluster, err := fs.rootContentCluster()
	log.PanicIf(err)

	fs.resolver = NewResolver(dirStore, rootContentCluster)

	err = journal.ReplayJournal(fs, replayRules)
	log.PanicIf(err)

	return fs, nil
}

// rootContentCluster looks up the "master" level of the root leveled
// directory to find the content cluster path resolution is anchored at.
func (fs *Filesystem) rootContentCluster() (cluster uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	ve, found, err := fs.findRootLevel(MasterLevelName)
	log.PanicIf(err)

	if found != true {
		return 0, newError(KindFilesystemCorrupt, "root directory has no master level")
	}

	return ve.ContentCluster, nil
}

func (fs *Filesystem) findRootLevel(name string) (ve *VersionEntry, found bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	ve, _, found, err = fs.dirStore.FindLevel(fs.sb.RootDirCluster, name)
	log.PanicIf(err)

	return ve, found, nil
}

// Resolver exposes the filesystem's path resolver to callers that need to
// inspect or drive current-directory state directly (e.g. the shell's
// `current` verb).
func (fs *Filesystem) Resolver() *Resolver {
	return fs.resolver
}

// DirStore exposes the filesystem's directory/level store.
func (fs *Filesystem) DirStore() *DirStore {
	return fs.dirStore
}

// SuperBlock returns the filesystem's in-memory superblock.
func (fs *Filesystem) SuperBlock() *SuperBlock {
	return fs.sb
}

// readChain reads exactly `size` bytes from the data chain rooted at
// `startCluster`, used by both read() and symlink expansion.
func (fs *Filesystem) readChain(startCluster uint64, size uint64) (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if size == 0 {
		return []byte{}, nil
	}

	chain, err := fs.lat.Follow(startCluster)
	log.PanicIf(err)

	data = make([]byte, 0, size)
	clusterBuffer := make([]byte, ClusterSize)

	for _, clusterNumber := range chain {
		if uint64(len(data)) >= size {
			break
		}

		err := ReadCluster(fs.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		remaining := size - uint64(len(data))
		take := uint64(ClusterSize)
		if remaining < take {
			take = remaining
		}

		data = append(data, clusterBuffer[:take]...)
	}

	if uint64(len(data)) < size {
		return nil, newError(KindFilesystemCorrupt, "data chain is shorter than the entry's recorded size")
	}

	return data, nil
}

// writeChain writes `data` into the chain rooted at `startCluster`,
// extending the chain via the LAT as needed. The start cluster is always
// kept; any clusters past the last one `data` needs are cut from the chain
// and returned to the free pool.
func (fs *Filesystem) writeChain(startCluster uint64, data []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain, err := fs.lat.Follow(startCluster)
	log.PanicIf(err)

	offset := 0
	clusterIndex := 0

	for offset < len(data) {
		var clusterNumber uint64

		if clusterIndex < len(chain) {
			clusterNumber = chain[clusterIndex]
		} else {
			clusterNumber, err = fs.lat.Extend(chain[len(chain)-1])
			log.PanicIf(err)

			chain = append(chain, clusterNumber)
		}

		clusterBuffer := make([]byte, ClusterSize)

		end := offset + ClusterSize
		if end > len(data) {
			end = len(data)
		}

		copy(clusterBuffer, data[offset:end])

		err = WriteCluster(fs.bd, clusterNumber, clusterBuffer)
		log.PanicIf(err)

		offset = end
		clusterIndex++
	}

	keep := clusterIndex
	if keep == 0 {
		keep = 1
	}

	if keep < len(chain) {
		err = fs.lat.Set(chain[keep-1], LatEnd)
		log.PanicIf(err)

		err = fs.lat.FreeChain(chain[keep])
		log.PanicIf(err)
	}

	return nil
}
