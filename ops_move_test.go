package lfs

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestMove_renamesWithinSameDirectory(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("old.txt", []byte("payload"))
	log.PanicIf(err)

	err = fs.Move("old.txt", "new.txt")
	log.PanicIf(err)

	_, err = fs.Read("old.txt")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound reading the old name after move, got (%v)", err)
	}

	data, err := fs.Read("new.txt")
	log.PanicIf(err)

	if string(data) != "payload" {
		t.Fatalf("expected the moved file's content to be preserved, got [%s]", string(data))
	}
}

func TestMove_rejectsDestinationCollision(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("a.txt", []byte("a"))
	log.PanicIf(err)

	err = fs.Write("b.txt", []byte("b"))
	log.PanicIf(err)

	err = fs.Move("a.txt", "b.txt")
	if KindOf(err) != KindAlreadyExists {
		t.Fatalf("expected AlreadyExists moving onto an existing name, got (%v)", err)
	}
}

func TestMove_acrossLeveledDirectories(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "dest", PermDirDefault)
	log.PanicIf(err)

	err = fs.LevelAdd("dest", MasterLevelName)
	log.PanicIf(err)

	err = fs.Write("orig.txt", []byte("moved content"))
	log.PanicIf(err)

	err = fs.Move("orig.txt", "dest/orig.txt")
	log.PanicIf(err)

	entries, err := fs.LookFolderLevel("dest", MasterLevelName)
	log.PanicIf(err)

	if len(entries) != 1 || entries[0].NameString() != "orig.txt" {
		t.Fatalf("expected orig.txt to appear under dest:master, got %+v", entries)
	}
}
