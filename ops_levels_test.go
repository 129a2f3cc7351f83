package lfs

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestLevelAdd_bindsNewContentTable(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "proj", PermDirDefault)
	log.PanicIf(err)

	err = fs.LevelAdd("proj", "draft")
	log.PanicIf(err)

	levels, err := fs.LookFolderLevels("proj")
	log.PanicIf(err)

	if len(levels) != 1 || levels[0].NameString() != "draft" {
		t.Fatalf("expected exactly one level named draft, got %+v", levels)
	}
}

func TestLevelRemove_refusesMaster(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "proj", PermDirDefault)
	log.PanicIf(err)

	err = fs.LevelAdd("proj", MasterLevelName)
	log.PanicIf(err)

	err = fs.LevelRemove("proj", MasterLevelName)
	if KindOf(err) != KindNotEmpty {
		t.Fatalf("expected NotEmpty removing the master level, got (%v)", err)
	}
}

func TestLevelRename(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "proj", PermDirDefault)
	log.PanicIf(err)

	err = fs.LevelAdd("proj", "v1")
	log.PanicIf(err)

	err = fs.LevelRename("proj", "v1", "v2")
	log.PanicIf(err)

	levels, err := fs.LookFolderLevels("proj")
	log.PanicIf(err)

	if len(levels) != 1 || levels[0].NameString() != "v2" {
		t.Fatalf("expected the level to be renamed to v2, got %+v", levels)
	}
}

func TestLink_sharedLevelVisibleFromBothDirectories(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "dirA", PermDirDefault)
	log.PanicIf(err)

	err = fs.Create(TypeLeveledDir, "dirB", PermDirDefault)
	log.PanicIf(err)

	err = fs.Link("dirA", "dirB", "shared")
	log.PanicIf(err)

	entriesA, err := fs.LookFolderLevel("dirA", "shared")
	log.PanicIf(err)

	if len(entriesA) != 0 {
		t.Fatalf("expected the freshly shared level to start empty, got (%d) entries", len(entriesA))
	}

	// Write through dirA's view of the shared level.
	err = fs.resolver.Nav("dirA:shared")
	log.PanicIf(err)

	err = fs.Create(TypeFile, "via-a.txt", PermDefault)
	log.PanicIf(err)

	// The same file must be visible through dirB's view of the same level.
	entriesB, err := fs.LookFolderLevel("dirB", "shared")
	log.PanicIf(err)

	if len(entriesB) != 1 || entriesB[0].NameString() != "via-a.txt" {
		t.Fatalf("expected via-a.txt to be visible through dirB's shared level, got %+v", entriesB)
	}
}
