package lfs

import (
	"fmt"
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestWrite_autoCreatesFile(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("new.txt", []byte("content"))
	log.PanicIf(err)

	data, err := fs.Read("new.txt")
	log.PanicIf(err)

	if string(data) != "content" {
		t.Fatalf("expected [content], got [%s]", string(data))
	}
}

func TestWrite_rejectsNonFile(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "adir", PermDirDefault)
	log.PanicIf(err)

	err = fs.Write("adir", []byte("x"))
	if KindOf(err) != KindInvalidName {
		t.Fatalf("expected InvalidName writing to a directory, got (%v)", err)
	}
}

func TestWrite_overwritesExistingContent(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("f.txt", []byte("first"))
	log.PanicIf(err)

	err = fs.Write("f.txt", []byte("second, and longer than first"))
	log.PanicIf(err)

	data, err := fs.Read("f.txt")
	log.PanicIf(err)

	if string(data) != "second, and longer than first" {
		t.Fatalf("expected overwritten content, got [%s]", string(data))
	}
}

func TestRead_followsSymlinkToFile(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("target.txt", []byte("payload"))
	log.PanicIf(err)

	err = fs.Symlink("/target.txt", "link")
	log.PanicIf(err)

	data, err := fs.Read("link")
	log.PanicIf(err)

	if string(data) != "payload" {
		t.Fatalf("expected to read through the symlink to [payload], got [%s]", string(data))
	}
}

func TestRead_brokenSymlinkIsReadTimeError(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Symlink("/does-not-exist.txt", "dangling")
	log.PanicIf(err)

	_, err = fs.Read("dangling")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound reading through a broken symlink, got (%v)", err)
	}
}

// TestWrite_exhaustionSurfacesNoSpaceThroughPublicAPI exercises the
// allocator-exhaustion path through fs.Write rather than lat.Allocate
// directly, so a NoSpace error has to survive Create's own recover/wrapPanic
// cycle before Write's recover/wrapPanic sees it.
func TestWrite_exhaustionSurfacesNoSpaceThroughPublicAPI(t *testing.T) {
	f, bd, _ := newTestImage(512, "EXHAUST")
	defer cleanupTestImage(f)

	fs, err := Mount(bd)
	log.PanicIf(err)

	var lastErr error
	for i := 0; i < 1000; i++ {
		lastErr = fs.Write(fmt.Sprintf("f%d.txt", i), []byte("x"))
		if lastErr != nil {
			break
		}
	}

	if lastErr == nil {
		t.Fatalf("expected the allocator to exhaust within 1000 files")
	}

	if KindOf(lastErr) != KindNoSpace {
		t.Fatalf("expected NoSpace to survive Create's and Write's recover/wrapPanic frames, got (%v)", lastErr)
	}
}
