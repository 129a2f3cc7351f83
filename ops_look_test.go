package lfs

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestCurrent_reportsRootMasterByDefault(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	cluster, level := fs.Current()

	if level != MasterLevelName {
		t.Fatalf("expected the starting level to be [%s], got [%s]", MasterLevelName, level)
	}

	rootCluster, err := fs.rootContentCluster()
	log.PanicIf(err)

	if cluster != rootCluster {
		t.Fatalf("expected the starting cluster to be the root content cluster (%d), got (%d)", rootCluster, cluster)
	}
}

func TestDirTree_rendersNestedLevelsAndDetectsSharedRevisit(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeLeveledDir, "dirA", PermDirDefault)
	log.PanicIf(err)

	err = fs.Create(TypeLeveledDir, "dirB", PermDirDefault)
	log.PanicIf(err)

	err = fs.Link("dirA", "dirB", "shared")
	log.PanicIf(err)

	lines, err := fs.DirTree()
	log.PanicIf(err)

	if len(lines) == 0 {
		t.Fatalf("expected at least one rendered line")
	}

	rendered := RenderTree(lines)
	if len(rendered) == 0 {
		t.Fatalf("expected RenderTree to produce non-empty output")
	}

	sawRevisit := false
	for _, line := range lines {
		if line.Text == "(already visited, shared level)" {
			sawRevisit = true
		}
	}

	if sawRevisit != true {
		t.Fatalf("expected the walk to flag the second visit to the shared level's content cluster")
	}
}
