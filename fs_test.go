package lfs

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestMount_roundTripAgainstFreshlyFormattedImage(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	cluster, level := fs.Current()
	if level != MasterLevelName {
		t.Fatalf("expected a freshly mounted filesystem to start on the master level, got (%s)", level)
	}

	rootContentCluster, err := fs.rootContentCluster()
	log.PanicIf(err)

	if cluster != rootContentCluster {
		t.Fatalf("expected current cluster (%d) to equal the root content cluster (%d)", cluster, rootContentCluster)
	}

	entries, err := fs.LookCurrent()
	log.PanicIf(err)

	if len(entries) != 0 {
		t.Fatalf("expected a freshly formatted volume to have no entries, got (%d)", len(entries))
	}
}

func TestMount_replaysCommittedWritesAcrossRemount(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	err := fs.Create(TypeFile, "persisted.txt", PermDefault)
	log.PanicIf(err)

	err = fs.Write("persisted.txt", []byte("hello"))
	log.PanicIf(err)

	bd := fs.bd

	remounted, err := Mount(bd)
	log.PanicIf(err)

	data, err := remounted.Read("persisted.txt")
	log.PanicIf(err)

	if string(data) != "hello" {
		t.Fatalf("expected persisted content [hello], got [%s]", string(data))
	}
}

func TestReadChainWriteChain_roundTrip(t *testing.T) {
	f, fs := mustMountFreshFilesystem(t, 2048)
	defer cleanupTestImage(f)

	startCluster, err := fs.lat.Allocate()
	log.PanicIf(err)

	payload := make([]byte, ClusterSize*2+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	err = fs.writeChain(startCluster, payload)
	log.PanicIf(err)

	readBack, err := fs.readChain(startCluster, uint64(len(payload)))
	log.PanicIf(err)

	if len(readBack) != len(payload) {
		t.Fatalf("expected (%d) bytes back, got (%d)", len(payload), len(readBack))
	}

	for i := range payload {
		if readBack[i] != payload[i] {
			t.Fatalf("byte mismatch at offset (%d): wrote (%d) read (%d)", i, payload[i], readBack[i])
		}
	}
}
