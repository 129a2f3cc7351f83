package lfs

import (
	"strings"
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestSymlink_rejectsOversizedTarget(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	target := strings.Repeat("a", maxSymlinkTargetLength)

	err := fs.Symlink(target, "toolong")
	if KindOf(err) != KindInvalidName {
		t.Fatalf("expected InvalidName for an oversized symlink target, got (%v)", err)
	}
}

func TestSymlink_rejectsCollision(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("existing.txt", []byte("x"))
	log.PanicIf(err)

	err = fs.Symlink("/anywhere", "existing.txt")
	if KindOf(err) != KindAlreadyExists {
		t.Fatalf("expected AlreadyExists for a symlink colliding with an existing entry, got (%v)", err)
	}
}

func TestHardlink_rejectsNonFileTarget(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "adir", PermDirDefault)
	log.PanicIf(err)

	err = fs.Hardlink("/adir", "link")
	if KindOf(err) != KindInvalidName {
		t.Fatalf("expected InvalidName hardlinking a directory, got (%v)", err)
	}
}

func TestHardlink_rejectsCollision(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("target.txt", []byte("x"))
	log.PanicIf(err)

	err = fs.Write("existing.txt", []byte("y"))
	log.PanicIf(err)

	err = fs.Hardlink("/target.txt", "existing.txt")
	if KindOf(err) != KindAlreadyExists {
		t.Fatalf("expected AlreadyExists for a hardlink colliding with an existing entry, got (%v)", err)
	}
}

func TestHardlink_sharesDataChainAndStartsAtTwoRefs(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("target.txt", []byte("shared"))
	log.PanicIf(err)

	err = fs.Hardlink("/target.txt", "link")
	log.PanicIf(err)

	linkData, err := fs.Read("link")
	log.PanicIf(err)

	if string(linkData) != "shared" {
		t.Fatalf("expected hardlink to read the same content, got [%s]", string(linkData))
	}

	targetDE, _, found, err := fs.dirStore.FindEntry(fs.resolver.CurrentCluster(), "target.txt")
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected target.txt to exist")
	}

	if targetDE.RefCount() != 2 {
		t.Fatalf("expected the ref count to be (2) after one hardlink, got (%d)", targetDE.RefCount())
	}
}
