// This package implements the write-ahead journal: a circular log of
// CRC-protected transaction records that makes every mutating operation
// crash-consistent (spec.md §4.4, §5).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Journal is the circular, CRC-protected write-ahead log described in
// spec.md §4.4. One Journal instance belongs to one mounted filesystem.
type Journal struct {
	bd  BlockDevice
	sbm *SuperBlockManager
	sb  *SuperBlock

	startCluster uint64
	sectorCount  uint64
	capacity     uint64

	head  uint64
	txID  uint64

	nowFunc func() uint64
}

// NewJournal returns a Journal bound to the region described by the
// superblock, restoring its in-memory transaction id from
// superblock.LastTxID (spec.md §4.4).
func NewJournal(bd BlockDevice, sbm *SuperBlockManager, sb *SuperBlock) *Journal {
	return &Journal{
		bd:           bd,
		sbm:          sbm,
		sb:           sb,
		startCluster: sb.JournalStartCluster,
		sectorCount:  sb.JournalSectorCount,
		capacity:     sb.JournalSectorCount * JournalEntriesPerSector,
		txID:         sb.LastTxID,
		nowFunc:      unixNow,
	}
}

func (j *Journal) slotLocation(slot uint64) (sector uint64, offsetInSector uint32) {
	entriesPerSector := uint64(JournalEntriesPerSector)

	sectorWithinRegion := slot / entriesPerSector
	entryWithinSector := slot % entriesPerSector

	sector = j.startCluster*SectorsPerCluster + sectorWithinRegion
	offsetInSector = uint32(entryWithinSector) * JournalEntrySize

	return sector, offsetInSector
}

func (j *Journal) readSlot(slot uint64) (je *JournalEntry, raw []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	sector, offsetInSector := j.slotLocation(slot)

	sectorBuffer := make([]byte, SectorSize)

	err = j.bd.ReadSector(sector, sectorBuffer)
	log.PanicIf(err)

	raw = sectorBuffer[offsetInSector : offsetInSector+JournalEntrySize]

	je, err = UnpackJournalEntry(raw)
	log.PanicIf(err)

	return je, raw, nil
}

func (j *Journal) writeSlot(slot uint64, raw []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	sector, offsetInSector := j.slotLocation(slot)

	sectorBuffer := make([]byte, SectorSize)

	err = j.bd.ReadSector(sector, sectorBuffer)
	log.PanicIf(err)

	copy(sectorBuffer[offsetInSector:offsetInSector+JournalEntrySize], raw)

	err = j.bd.WriteSector(sector, sectorBuffer)
	log.PanicIf(err)

	return nil
}

// RecoverHead scans every slot and positions the write head one past the
// slot holding the highest transaction id, so a fresh mount never
// overwrites an entry before it has been replayed. Called once at mount
// time, before ReplayJournal.
func (j *Journal) RecoverHead() (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	var bestSlot uint64
	var bestTxID uint64
	found := false

	for slot := uint64(0); slot < j.capacity; slot++ {
		je, raw, err := j.readSlot(slot)
		log.PanicIf(err)

		if je.TxID == 0 || VerifyChecksum(raw) != true {
			continue
		}

		if found == false || je.TxID > bestTxID {
			bestTxID = je.TxID
			bestSlot = slot
			found = true
		}
	}

	if found == true {
		j.head = (bestSlot + 1) % j.capacity
	} else {
		j.head = 0
	}

	return nil
}

// LogOperation appends a pending transaction record and returns its
// transaction id. Per spec.md §5, the caller MUST ensure this write lands
// on stable storage before any corresponding cluster/LAT/entry mutation
// begins.
func (j *Journal) LogOperation(opType OpType, targetCluster uint64, metadata string) (txID uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	j.txID++

	je := &JournalEntry{
		TxID:          j.txID,
		OpType:        uint32(opType),
		Status:        uint32(StatusPending),
		TargetCluster: targetCluster,
		Timestamp:     j.nowFunc(),
	}

	je.SetMetadata(metadata)

	raw, err := PackJournalEntry(je)
	log.PanicIf(err)

	slot := j.head

	err = j.writeSlot(slot, raw)
	log.PanicIf(err)

	err = j.bd.Flush()
	log.PanicIf(err)

	j.head = (j.head + 1) % j.capacity

	return j.txID, nil
}

// findSlotForTx scans the journal for the slot holding the given
// transaction id.
func (j *Journal) findSlotForTx(txID uint64) (slot uint64, found bool, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	for s := uint64(0); s < j.capacity; s++ {
		je, _, err := j.readSlot(s)
		log.PanicIf(err)

		if je.TxID == txID {
			return s, true, nil
		}
	}

	return 0, false, nil
}

// CommitOperation marks a previously logged transaction committed,
// persists the new lastTxId into the superblock, and is always called
// AFTER all data and metadata writes of the operation (spec.md §5).
func (j *Journal) CommitOperation(txID uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	err = j.setStatus(txID, StatusCommitted)
	log.PanicIf(err)

	j.sb.LastTxID = txID

	err = j.sbm.Persist(j.sb)
	log.PanicIf(err)

	return nil
}

// AbortOperation marks a previously logged transaction aborted. Per
// spec.md §4.4's write-path state machine, this does not roll back any
// disk state already written -- replay is the durability model.
func (j *Journal) AbortOperation(txID uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	err = j.setStatus(txID, StatusAborted)
	log.PanicIf(err)

	return nil
}

func (j *Journal) setStatus(txID uint64, status JournalStatus) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	slot, found, err := j.findSlotForTx(txID)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindJournalCorrupt, "no journal entry found for transaction (%d)", txID)
	}

	je, _, err := j.readSlot(slot)
	log.PanicIf(err)

	je.Status = uint32(status)

	raw, err := PackJournalEntry(je)
	log.PanicIf(err)

	err = j.writeSlot(slot, raw)
	log.PanicIf(err)

	return nil
}

// ReplayRule is the per-op-type idempotent recovery action a mount-time
// replay applies to a pending entry (spec.md §4.4's table). It is given
// the directory/entry store so it can look inside the target cluster, and
// returns whether the operation should be considered committed.
type ReplayRule func(fs *Filesystem, je *JournalEntry) (committed bool, err error)

// ReplayJournal scans every entry, verifies its checksum, and advances
// pending entries to committed or aborted according to the per-op replay
// rules (spec.md §4.4). Entries failing their CRC check are skipped (and
// treated as absent) rather than failing the mount; a sector that cannot
// be read fails the replay.
func (j *Journal) ReplayJournal(fs *Filesystem, rules map[OpType]ReplayRule) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	for slot := uint64(0); slot < j.capacity; slot++ {
		je, raw, err := j.readSlot(slot)
		log.PanicIf(err)

		if je.TxID == 0 {
			continue
		}

		if VerifyChecksum(raw) != true {
			// Corrupt entry: skip it, treat it as absent.
			continue
		}

		if JournalStatus(je.Status) != StatusPending {
			continue
		}

		rule, found := rules[OpType(je.OpType)]
		if found != true {
			continue
		}

		committed, err := rule(fs, je)
		log.PanicIf(err)

		if committed == true {
			je.Status = uint32(StatusCommitted)
		} else {
			je.Status = uint32(StatusAborted)
		}

		newRaw, err := PackJournalEntry(je)
		log.PanicIf(err)

		err = j.writeSlot(slot, newRaw)
		log.PanicIf(err)
	}

	return nil
}

// SweepCommitted zeroes out committed entries with a transaction id below
// threshold, reclaiming journal slots the way spec.md §4.4 allows as a
// background sweep.
func (j *Journal) SweepCommitted(threshold uint64) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	zero := make([]byte, JournalEntrySize)

	for slot := uint64(0); slot < j.capacity; slot++ {
		je, _, err := j.readSlot(slot)
		log.PanicIf(err)

		if je.TxID != 0 && je.TxID < threshold && JournalStatus(je.Status) == StatusCommitted {
			err := j.writeSlot(slot, zero)
			log.PanicIf(err)
		}
	}

	return nil
}
