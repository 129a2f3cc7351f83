// This package lays out a fresh filesystem: the superblock, the LAT
// region, the journal region, and the root leveled directory's level and
// content tables (spec.md §4.2, §4.3's "Format-time initialization").

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// defaultJournalSectorCount is how many sectors format() reserves for the
// write-ahead log. At JournalEntrySize=64 this yields 1,024 journal slots
// per sector group of 128, comfortably deep for interactive and scripted
// shell sessions alike.
const defaultJournalSectorCount = 128

// formatBatchSectors is how many sectors format() zeroes per write,
// matching spec.md §4.3's "64 sectors = 32 KiB" batching example so a
// multi-GiB format stays responsive instead of issuing one sector write
// at a time.
const formatBatchSectors = 64

// FormatProgressFunc receives periodic updates while a device is being
// zeroed during format, expressed as sectors written out of the device's
// total sector count. It may be nil. cmd/lfsformat drives an mpb.Bar from
// this callback; tests pass nil.
type FormatProgressFunc func(sectorsWritten, totalSectors uint64)

// Format initializes a raw block device as a new, empty LFS volume and
// returns the resulting superblock. totalSectors is the device's full
// sector count (including the sector-0 superblock and the backup copy at
// the final cluster).
func Format(bd BlockDevice, totalSectors uint64, volumeName string, onProgress FormatProgressFunc) (sb *SuperBlock, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	totalClusters := totalSectors / SectorsPerCluster
	if totalClusters < 8 {
		return nil, newErrorf(KindNoSpace, "device is too small to format: (%d) sectors", totalSectors)
	}

	latSectorCount := ceilDiv(totalClusters*8, SectorSize)
	latClusterCount := ceilDiv(latSectorCount, SectorsPerCluster)

	journalSectorCount := uint64(defaultJournalSectorCount)
	journalClusterCount := ceilDiv(journalSectorCount, SectorsPerCluster)

	latStartCluster := uint64(1)
	journalStartCluster := latStartCluster + latClusterCount
	rootLevelTableCluster := journalStartCluster + journalClusterCount
	rootContentTableCluster := rootLevelTableCluster + 1
	backupSBCluster := totalClusters - 1

	if rootContentTableCluster >= backupSBCluster {
		return nil, newErrorf(KindNoSpace, "device is too small to hold the LAT and journal regions: (%d) sectors", totalSectors)
	}

	reservedMax := rootContentTableCluster + 1

	err = zeroRegion(bd, 0, totalSectors, onProgress)
	log.PanicIf(err)

	lat := NewLAT(bd, latStartCluster, latSectorCount, reservedMax)

	err = lat.Set(0, LatBad)
	log.PanicIf(err)

	for c := latStartCluster; c < journalStartCluster; c++ {
		err = lat.Set(c, LatBad)
		log.PanicIf(err)
	}

	for c := journalStartCluster; c < rootLevelTableCluster; c++ {
		err = lat.Set(c, LatBad)
		log.PanicIf(err)
	}

	err = lat.Set(rootLevelTableCluster, LatEnd)
	log.PanicIf(err)

	err = lat.Set(rootContentTableCluster, LatEnd)
	log.PanicIf(err)

	err = lat.Set(backupSBCluster, LatBad)
	log.PanicIf(err)

	rootVersion := &VersionEntry{
		ContentCluster: rootContentTableCluster,
		Flags:          LevelFlagActive,
		Active:         1,
	}

	err = rootVersion.SetName(MasterLevelName)
	log.PanicIf(err)

	raw, err := PackVersionEntry(rootVersion)
	log.PanicIf(err)

	levelTableCluster := make([]byte, ClusterSize)
	copy(levelTableCluster[:VersionEntrySize], raw)

	err = WriteCluster(bd, rootLevelTableCluster, levelTableCluster)
	log.PanicIf(err)

	sb = &SuperBlock{
		Magic:               MagicNumber,
		Version:             Version,
		TotalSectors:        totalSectors,
		ClusterSize:         ClusterSize,
		LatStartCluster:     latStartCluster,
		LatSectorCount:      latSectorCount,
		JournalStartCluster: journalStartCluster,
		JournalSectorCount:  journalSectorCount,
		LastTxID:            0,
		RootDirCluster:      rootLevelTableCluster,
		BackupSBCluster:     backupSBCluster,
	}

	sb.SetVolumeName(volumeName)

	sbm := NewSuperBlockManager(bd)

	err = sbm.PersistWithBackup(sb)
	log.PanicIf(err)

	err = bd.Flush()
	log.PanicIf(err)

	return sb, nil
}

// zeroRegion overwrites `sectorCount` sectors starting at `startSector`
// with zero bytes, in formatBatchSectors-sized batches, reporting
// progress after each batch.
func zeroRegion(bd BlockDevice, startSector, sectorCount uint64, onProgress FormatProgressFunc) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	zeroBatch := make([]byte, formatBatchSectors*SectorSize)

	var written uint64
	for written < sectorCount {
		batch := formatBatchSectors
		if remaining := sectorCount - written; uint64(batch) > remaining {
			batch = int(remaining)
		}

		err = bd.WriteSector(startSector+written, zeroBatch[:batch*SectorSize])
		log.PanicIf(err)

		written += uint64(batch)

		if onProgress != nil {
			onProgress(written, sectorCount)
		}
	}

	return nil
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}
