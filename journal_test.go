package lfs

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func newTestJournal(totalSectors uint64) (f interface{}, j *Journal, sbm *SuperBlockManager, sb *SuperBlock, cleanup func()) {
	rawFile, bd, initial := newTestImage(totalSectors, "JOURNALTEST")

	sbm = NewSuperBlockManager(bd)

	sb, err := sbm.Mount()
	log.PanicIf(err)

	_ = initial

	j = NewJournal(bd, sbm, sb)

	return rawFile, j, sbm, sb, func() { cleanupTestImage(rawFile) }
}

func TestJournal_logCommit_roundTrip(t *testing.T) {
	_, j, _, _, cleanup := newTestJournal(1024)
	defer cleanup()

	txID, err := j.LogOperation(OpCreate, 5, "hello.txt")
	log.PanicIf(err)

	if txID == 0 {
		t.Fatalf("expected a nonzero transaction id")
	}

	err = j.CommitOperation(txID)
	log.PanicIf(err)

	slot, found, err := j.findSlotForTx(txID)
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected to find the slot for tx (%d)", txID)
	}

	je, _, err := j.readSlot(slot)
	log.PanicIf(err)

	if JournalStatus(je.Status) != StatusCommitted {
		t.Fatalf("expected StatusCommitted, got (%s)", JournalStatus(je.Status))
	}

	if je.MetadataString() != "hello.txt" {
		t.Fatalf("metadata round-trip mismatch: [%s]", je.MetadataString())
	}
}

func TestJournal_abortOperation(t *testing.T) {
	_, j, _, _, cleanup := newTestJournal(1024)
	defer cleanup()

	txID, err := j.LogOperation(OpDelete, 9, "gone.txt")
	log.PanicIf(err)

	err = j.AbortOperation(txID)
	log.PanicIf(err)

	slot, found, err := j.findSlotForTx(txID)
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected to find the slot for tx (%d)", txID)
	}

	je, _, err := j.readSlot(slot)
	log.PanicIf(err)

	if JournalStatus(je.Status) != StatusAborted {
		t.Fatalf("expected StatusAborted, got (%s)", JournalStatus(je.Status))
	}
}

func TestJournal_recoverHead_skipsPastHighestTx(t *testing.T) {
	_, j, _, _, cleanup := newTestJournal(1024)
	defer cleanup()

	var lastTxID uint64
	for i := 0; i < 3; i++ {
		txID, err := j.LogOperation(OpWrite, 1, "a")
		log.PanicIf(err)

		lastTxID = txID
	}

	expectedHead := j.head

	j.head = 0

	err := j.RecoverHead()
	log.PanicIf(err)

	if j.head != expectedHead {
		t.Fatalf("expected recovered head (%d), got (%d)", expectedHead, j.head)
	}

	_ = lastTxID
}

func TestJournal_verifyChecksum_detectsCorruption(t *testing.T) {
	_, j, _, _, cleanup := newTestJournal(1024)
	defer cleanup()

	txID, err := j.LogOperation(OpCreate, 3, "x")
	log.PanicIf(err)

	slot, found, err := j.findSlotForTx(txID)
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected to find the slot for tx (%d)", txID)
	}

	_, raw, err := j.readSlot(slot)
	log.PanicIf(err)

	corrupted := append([]byte(nil), raw...)
	corrupted[0] ^= 0xFF

	if VerifyChecksum(corrupted) == true {
		t.Fatalf("expected a flipped byte to fail checksum verification")
	}
}

func TestJournal_replayJournal_pendingEntryCommitsWhenEffectVisible(t *testing.T) {
	rawFile, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(rawFile)

	err := fs.Create(TypeFile, "replayed.txt", PermDefault)
	log.PanicIf(err)

	slot, found, err := fs.journal.findSlotForTx(fs.journal.txID)
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected to find the slot for the most recent transaction")
	}

	je, _, err := fs.journal.readSlot(slot)
	log.PanicIf(err)

	je.Status = uint32(StatusPending)

	raw, err := PackJournalEntry(je)
	log.PanicIf(err)

	err = fs.journal.writeSlot(slot, raw)
	log.PanicIf(err)

	err = fs.journal.ReplayJournal(fs, replayRules)
	log.PanicIf(err)

	je2, _, err := fs.journal.readSlot(slot)
	log.PanicIf(err)

	if JournalStatus(je2.Status) != StatusCommitted {
		t.Fatalf("expected replay to mark a visible create as committed, got (%s)", JournalStatus(je2.Status))
	}
}

func TestJournal_sweepCommitted_zeroesOldEntries(t *testing.T) {
	_, j, _, _, cleanup := newTestJournal(1024)
	defer cleanup()

	txID, err := j.LogOperation(OpWrite, 1, "a")
	log.PanicIf(err)

	err = j.CommitOperation(txID)
	log.PanicIf(err)

	err = j.SweepCommitted(txID + 1)
	log.PanicIf(err)

	slot, found, err := j.findSlotForTx(txID)
	log.PanicIf(err)

	if found == true {
		t.Fatalf("expected the swept entry's tx id to no longer be findable, found at slot (%d)", slot)
	}
}
