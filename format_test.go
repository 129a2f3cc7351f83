package lfs

import (
	"os"
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestFormat_producesValidMountableSuperblock(t *testing.T) {
	f, err := os.CreateTemp("", "lfs-format-test-*.img")
	log.PanicIf(err)

	defer cleanupTestImage(f)

	totalSectors := uint64(1024)

	err = f.Truncate(int64(totalSectors) * SectorSize)
	log.PanicIf(err)

	bd := NewFileBlockDevice(f, 0)

	sb, err := Format(bd, totalSectors, "MYVOLUME", nil)
	log.PanicIf(err)

	if sb.IsMagicValid() != true {
		t.Fatalf("expected a freshly formatted superblock to have a valid magic number")
	}

	if sb.VolumeNameString() != "MYVOLUME" {
		t.Fatalf("expected volume name MYVOLUME, got (%s)", sb.VolumeNameString())
	}

	sbm := NewSuperBlockManager(bd)

	mounted, err := sbm.Mount()
	log.PanicIf(err)

	if mounted.RootDirCluster != sb.RootDirCluster {
		t.Fatalf("expected the mounted superblock to match the formatted one")
	}

	reservedMax := sb.JournalStartCluster + ceilDiv(sb.JournalSectorCount, SectorsPerCluster) + 2

	lat := NewLAT(bd, sb.LatStartCluster, sb.LatSectorCount, reservedMax)
	ds := NewDirStore(bd, lat)

	ve, _, found, err := ds.FindLevel(sb.RootDirCluster, MasterLevelName)
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected a format-time master level to already exist on the root directory")
	}

	entries, err := ds.ReadEntries(ve.ContentCluster)
	log.PanicIf(err)

	if len(entries) != 0 {
		t.Fatalf("expected the freshly formatted root content table to be empty, got (%d) entries", len(entries))
	}
}

func TestFormat_reportsProgress(t *testing.T) {
	f, err := os.CreateTemp("", "lfs-format-progress-test-*.img")
	log.PanicIf(err)

	defer cleanupTestImage(f)

	totalSectors := uint64(1024)

	err = f.Truncate(int64(totalSectors) * SectorSize)
	log.PanicIf(err)

	bd := NewFileBlockDevice(f, 0)

	var calls int
	var lastWritten uint64

	onProgress := func(sectorsWritten, total uint64) {
		calls++
		lastWritten = sectorsWritten

		if total != totalSectors {
			t.Fatalf("expected progress callback's total to equal (%d), got (%d)", totalSectors, total)
		}
	}

	_, err = Format(bd, totalSectors, "PROGRESS", onProgress)
	log.PanicIf(err)

	if calls == 0 {
		t.Fatalf("expected at least one progress callback invocation")
	}

	if lastWritten != totalSectors {
		t.Fatalf("expected the final progress callback to report all (%d) sectors written, got (%d)", totalSectors, lastWritten)
	}
}

func TestFormat_rejectsDeviceTooSmall(t *testing.T) {
	f, err := os.CreateTemp("", "lfs-format-tiny-test-*.img")
	log.PanicIf(err)

	defer cleanupTestImage(f)

	totalSectors := uint64(4)

	err = f.Truncate(int64(totalSectors) * SectorSize)
	log.PanicIf(err)

	bd := NewFileBlockDevice(f, 0)

	_, err = Format(bd, totalSectors, "TINY", nil)
	if KindOf(err) != KindNoSpace {
		t.Fatalf("expected NoSpace for an undersized device, got (%v)", err)
	}
}
