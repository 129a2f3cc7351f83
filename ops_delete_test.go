package lfs

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestDel_file(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("gone.txt", []byte("x"))
	log.PanicIf(err)

	err = fs.Del("gone.txt", false)
	log.PanicIf(err)

	entries, err := fs.LookCurrent()
	log.PanicIf(err)

	if len(entries) != 0 {
		t.Fatalf("expected no entries after deleting the only file, got (%d)", len(entries))
	}
}

func TestDel_leveledDirectory_requiresRecursiveWhenNotEmpty(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "project", PermDirDefault)
	log.PanicIf(err)

	err = fs.LevelAdd("project", "draft")
	log.PanicIf(err)

	err = fs.Del("project", false)
	if KindOf(err) != KindNotEmpty {
		t.Fatalf("expected NotEmpty deleting a directory with an active level without -r, got (%v)", err)
	}

	err = fs.Del("project", true)
	log.PanicIf(err)

	entries, err := fs.LookCurrent()
	log.PanicIf(err)

	if len(entries) != 0 {
		t.Fatalf("expected the recursive delete to remove the directory entry, got (%d) entries", len(entries))
	}
}

func TestDel_hardlink_decrementsSharedRefCountAcrossTree(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("orig.txt", []byte("shared content"))
	log.PanicIf(err)

	err = fs.Hardlink("/orig.txt", "link1")
	log.PanicIf(err)

	err = fs.Hardlink("/orig.txt", "link2")
	log.PanicIf(err)

	// Three DirEntries now share one data chain (orig.txt, link1, link2)
	// with RefCount == 3. Deleting one should decrement the survivors'
	// stored count rather than freeing the chain.
	err = fs.Del("link1", false)
	log.PanicIf(err)

	origDE, _, found, err := fs.dirStore.FindEntry(fs.resolver.CurrentCluster(), "orig.txt")
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected orig.txt to still exist")
	}

	if origDE.RefCount() != 2 {
		t.Fatalf("expected orig.txt's surviving ref count to be (2), got (%d)", origDE.RefCount())
	}

	data, err := fs.Read("orig.txt")
	log.PanicIf(err)

	if string(data) != "shared content" {
		t.Fatalf("expected the data chain to remain intact while refs remain, got [%s]", string(data))
	}

	err = fs.Del("link2", false)
	log.PanicIf(err)

	origDE2, _, found, err := fs.dirStore.FindEntry(fs.resolver.CurrentCluster(), "orig.txt")
	log.PanicIf(err)

	if found != true {
		t.Fatalf("expected orig.txt to still exist")
	}

	if origDE2.RefCount() != 1 {
		t.Fatalf("expected orig.txt's ref count to settle at (1), got (%d)", origDE2.RefCount())
	}

	// Now only orig.txt itself references the chain; deleting it should
	// free the chain outright rather than decrementing further.
	err = fs.Del("orig.txt", false)
	log.PanicIf(err)

	entries, err := fs.LookCurrent()
	log.PanicIf(err)

	if len(entries) != 0 {
		t.Fatalf("expected no entries left after deleting the last reference, got (%d)", len(entries))
	}
}

func TestDel_symlink_freesItsOwnChainOnly(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Write("target.txt", []byte("still here"))
	log.PanicIf(err)

	err = fs.Symlink("/target.txt", "sym")
	log.PanicIf(err)

	err = fs.Del("sym", false)
	log.PanicIf(err)

	data, err := fs.Read("target.txt")
	log.PanicIf(err)

	if string(data) != "still here" {
		t.Fatalf("expected the symlink target's own data to survive, got [%s]", string(data))
	}

	_, err = fs.Read("sym")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound reading a deleted symlink, got (%v)", err)
	}
}
