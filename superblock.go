// This package manages the primary superblock and its backup copy.

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// SuperBlockManager reads, validates, and persists the superblock,
// including the primary/backup fallback described in spec.md §4.2.
type SuperBlockManager struct {
	bd BlockDevice
}

// NewSuperBlockManager returns a manager bound to the given block device.
func NewSuperBlockManager(bd BlockDevice) *SuperBlockManager {
	return &SuperBlockManager{bd: bd}
}

const superBlockSector = 0

// Mount reads the primary superblock; on a magic mismatch it falls back to
// the backup copy, and if that validates, rewrites the primary from it.
// Both copies failing to validate is a fatal FilesystemCorrupt (spec.md
// §4.2, §7).
func (m *SuperBlockManager) Mount() (sb *SuperBlock, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	primaryRaw := make([]byte, SuperBlockSize)

	err = m.bd.ReadSector(superBlockSector, primaryRaw)
	log.PanicIf(err)

	sb, err = UnpackSuperBlock(primaryRaw)
	log.PanicIf(err)

	if sb.IsMagicValid() == true {
		return sb, nil
	}

	backupRaw := make([]byte, SuperBlockSize)

	// We don't know the backup location without a valid superblock, but
	// the backup cluster is always the last cluster of the device -- the
	// device size alone is enough to locate it.
	sizeInBytes, err := m.bd.SizeInBytes()
	log.PanicIf(err)

	backupCluster := (sizeInBytes / ClusterSize) - 1
	backupSector := backupCluster * SectorsPerCluster

	err = m.bd.ReadSector(backupSector, backupRaw)
	log.PanicIf(err)

	backupSB, err := UnpackSuperBlock(backupRaw)
	log.PanicIf(err)

	if backupSB.IsMagicValid() != true {
		return nil, newError(KindFilesystemCorrupt, "both primary and backup superblocks have an invalid magic number")
	}

	err = m.bd.WriteSector(superBlockSector, backupRaw)
	log.PanicIf(err)

	return backupSB, nil
}

// Persist writes the superblock to the primary location only. This is the
// steady-state path used after every journal commit (spec.md §4.4).
func (m *SuperBlockManager) Persist(sb *SuperBlock) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	raw, err := PackSuperBlock(sb)
	log.PanicIf(err)

	err = m.bd.WriteSector(superBlockSector, raw)
	log.PanicIf(err)

	return nil
}

// PersistWithBackup writes the superblock to both the primary sector and
// the backup cluster. Used at format time (spec.md §4.2) and may also be
// called periodically to resynchronize the backup copy.
func (m *SuperBlockManager) PersistWithBackup(sb *SuperBlock) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	err = m.Persist(sb)
	log.PanicIf(err)

	raw, err := PackSuperBlock(sb)
	log.PanicIf(err)

	backupSector := sb.BackupSBCluster * SectorsPerCluster

	err = m.bd.WriteSector(backupSector, raw)
	log.PanicIf(err)

	return nil
}
