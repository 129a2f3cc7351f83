package lfs

import (
	"os"
	"testing"

	"github.com/dsoprea/go-logging"
)

// newTestImage creates a temporary, formatted image file of the given
// sector count and returns the open file, its BlockDevice, and the
// just-formatted superblock. Callers are responsible for closing/removing
// the file (defer cleanupTestImage(f)).
func newTestImage(totalSectors uint64, volumeName string) (f *os.File, bd *FileBlockDevice, sb *SuperBlock) {
	f, err := os.CreateTemp("", "lfs-test-*.img")
	log.PanicIf(err)

	err = f.Truncate(int64(totalSectors) * SectorSize)
	log.PanicIf(err)

	bd = NewFileBlockDevice(f, 0)

	sb, err = Format(bd, totalSectors, volumeName, nil)
	log.PanicIf(err)

	return f, bd, sb
}

// cleanupTestImage closes and removes a temp image produced by
// newTestImage.
func cleanupTestImage(f *os.File) {
	name := f.Name()

	f.Close()
	os.Remove(name)
}

// mustMountFreshFilesystem formats a new temporary image and mounts it,
// failing the test immediately on any error. Callers defer
// cleanupTestImage(f).
func mustMountFreshFilesystem(t *testing.T, totalSectors uint64) (f *os.File, fs *Filesystem) {
	f, bd, _ := newTestImage(totalSectors, "FSTEST")

	fs, err := Mount(bd)
	log.PanicIf(err)

	return f, fs
}
