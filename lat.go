// This package maintains the Level Allocation Table: the flat array of
// 64-bit next-cluster pointers that every chain (level table, content
// table, file data) is built out of. The LAT and journal regions are
// marked bad in it rather than chained.

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// latEntriesPerSector is how many 8-byte LAT entries fit in one sector.
const latEntriesPerSector = SectorSize / 8

// LAT is the cluster allocator described in spec.md §4.3. It owns no
// in-memory state beyond its geometry -- every Get/Set is a single
// read-modify-write sector access, so a LAT handle is cheap to construct
// and safe to share across operations within one mount.
type LAT struct {
	bd              BlockDevice
	startCluster    uint64
	sectorCount     uint64
	reservedMax     uint64 // clusters [0, reservedMax) may never be allocated
}

// NewLAT returns a LAT bound to the region described by the superblock.
// reservedMax is the first cluster number that allocate() is allowed to
// hand out (sector 0, the LAT region, the journal region, and the root
// directory's initial clusters are all pre-marked at format time and must
// never be reassigned even if their entries were somehow cleared).
func NewLAT(bd BlockDevice, startCluster, sectorCount, reservedMax uint64) *LAT {
	return &LAT{
		bd:           bd,
		startCluster: startCluster,
		sectorCount:  sectorCount,
		reservedMax:  reservedMax,
	}
}

// Capacity is the number of cluster entries this LAT can address.
func (lat *LAT) Capacity() uint64 {
	return lat.sectorCount * latEntriesPerSector
}

func (lat *LAT) entryLocation(clusterNumber uint64) (sector uint64, offsetInSector uint32) {
	byteOffset := clusterNumber * 8

	sectorWithinRegion := byteOffset / SectorSize
	offsetInSector = uint32(byteOffset % SectorSize)

	sector = lat.startCluster*SectorsPerCluster + sectorWithinRegion

	return sector, offsetInSector
}

// Get reads one LAT entry with a single sector read.
func (lat *LAT) Get(clusterNumber uint64) (value uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if clusterNumber >= lat.Capacity() {
		log.Panicf("cluster (%d) is outside the LAT's addressable range (%d)", clusterNumber, lat.Capacity())
	}

	sector, offsetInSector := lat.entryLocation(clusterNumber)

	buffer := make([]byte, SectorSize)

	err = lat.bd.ReadSector(sector, buffer)
	log.PanicIf(err)

	value = defaultEncoding.Uint64(buffer[offsetInSector : offsetInSector+8])

	return value, nil
}

// Set writes one LAT entry with a read-modify-write of its containing
// sector.
func (lat *LAT) Set(clusterNumber uint64, value uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if clusterNumber >= lat.Capacity() {
		log.Panicf("cluster (%d) is outside the LAT's addressable range (%d)", clusterNumber, lat.Capacity())
	}

	sector, offsetInSector := lat.entryLocation(clusterNumber)

	buffer := make([]byte, SectorSize)

	err = lat.bd.ReadSector(sector, buffer)
	log.PanicIf(err)

	defaultEncoding.PutUint64(buffer[offsetInSector:offsetInSector+8], value)

	err = lat.bd.WriteSector(sector, buffer)
	log.PanicIf(err)

	return nil
}

// Allocate linearly scans the LAT for a free entry, marks it end-of-chain,
// and returns it. Clusters below reservedMax are never considered.
func (lat *LAT) Allocate() (clusterNumber uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	capacity := lat.Capacity()

	buffer := make([]byte, SectorSize)

	startSector := (lat.reservedMax * 8) / SectorSize

	sectorCount := lat.sectorCount
	for s := startSector; s < sectorCount; s++ {
		err := lat.bd.ReadSector(lat.startCluster*SectorsPerCluster+s, buffer)
		log.PanicIf(err)

		for i := 0; i < latEntriesPerSector; i++ {
			candidate := s*latEntriesPerSector + uint64(i)

			if candidate < lat.reservedMax || candidate >= capacity {
				continue
			}

			value := defaultEncoding.Uint64(buffer[i*8 : i*8+8])
			if value == LatFree {
				defaultEncoding.PutUint64(buffer[i*8:i*8+8], LatEnd)

				err := lat.bd.WriteSector(lat.startCluster*SectorsPerCluster+s, buffer)
				log.PanicIf(err)

				return candidate, nil
			}
		}
	}

	return 0, newError(KindNoSpace, "LAT allocator is exhausted")
}

// Follow walks next-pointers from `start` until LatEnd, with cycle
// detection and a hard hop bound (spec.md §4.3, §5).
func (lat *LAT) Follow(start uint64) (chain []uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain = make([]uint64, 0, 4)
	visited := make(map[uint64]bool)

	current := start

	for hop := 0; ; hop++ {
		if hop > MaxChainHops {
			return nil, newError(KindFilesystemCorrupt, "LAT chain exceeded maximum hop bound")
		}

		if visited[current] == true {
			return nil, newErrorf(KindFilesystemCorrupt, "LAT chain revisits cluster (%d)", current)
		}

		visited[current] = true
		chain = append(chain, current)

		next, err := lat.Get(current)
		log.PanicIf(err)

		if next == LatEnd {
			break
		}

		if next == LatBad || next == LatFree {
			return nil, newErrorf(KindFilesystemCorrupt, "LAT chain hit sentinel (%#x) mid-chain at cluster (%d)", next, current)
		}

		current = next
	}

	return chain, nil
}

// Extend allocates a new cluster and appends it to the chain whose current
// tail is `lastInChain`.
func (lat *LAT) Extend(lastInChain uint64) (newCluster uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	newCluster, err = lat.Allocate()
	log.PanicIf(err)

	err = lat.Set(lastInChain, newCluster)
	log.PanicIf(err)

	return newCluster, nil
}

// FreeChain walks the chain rooted at `start` and marks every cluster
// free.
func (lat *LAT) FreeChain(start uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	chain, err := lat.Follow(start)
	log.PanicIf(err)

	for _, clusterNumber := range chain {
		err := lat.Set(clusterNumber, LatFree)
		log.PanicIf(err)
	}

	return nil
}
