// This package manages the low-level, on-disk storage structures.

package lfs

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// SectorSize is the fixed physical sector size that every on-disk structure
// is aligned to.
const SectorSize = 512

// ClusterSize is the fixed allocation unit: eight contiguous sectors.
const ClusterSize = SectorSize * SectorsPerCluster

// SectorsPerCluster is the number of sectors that make up one cluster.
const SectorsPerCluster = 8

// BlockDevice is the sector-granular byte store that every other LFS
// component is ultimately built on. Implementations may back onto an image
// file (base offset zero) or a physical partition (a nonzero base offset).
type BlockDevice interface {
	ReadSector(index uint64, buffer []byte) (err error)
	WriteSector(index uint64, buffer []byte) (err error)
	SizeInBytes() (size uint64, err error)
	Flush() (err error)
}

// FileBlockDevice is a BlockDevice backed by an *os.File, either an image
// file (baseOffset == 0) or a partition opened at a platform-specific
// starting byte offset.
type FileBlockDevice struct {
	f          *os.File
	baseOffset int64

	traceEnabled bool
}

// NewFileBlockDevice returns a BlockDevice rooted at `baseOffset` bytes into
// `f`.
func NewFileBlockDevice(f *os.File, baseOffset int64) (bd *FileBlockDevice) {
	return &FileBlockDevice{
		f:          f,
		baseOffset: baseOffset,
	}
}

// SetTrace enables or disables verbose sector-access logging. Tracing has no
// semantic effect; it is strictly for diagnosing replay/allocator behavior
// from the shell's `log on`/`log off` verb.
func (bd *FileBlockDevice) SetTrace(enabled bool) {
	bd.traceEnabled = enabled
}

func (bd *FileBlockDevice) traceAccess(op string, index uint64, buffer []byte) {
	if bd.traceEnabled == false {
		return
	}

	previewLen := 16
	if len(buffer) < previewLen {
		previewLen = len(buffer)
	}

	fmt.Printf("[trace] %s sector=%d bytes=%x\n", op, index, buffer[:previewLen])
}

func (bd *FileBlockDevice) offsetForSector(index uint64) int64 {
	return bd.baseOffset + int64(index)*SectorSize
}

// ReadSector reads exactly len(buffer) bytes starting at the given sector. A
// short read is a DeviceIO failure.
func (bd *FileBlockDevice) ReadSector(index uint64, buffer []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	n, err := bd.f.ReadAt(buffer, bd.offsetForSector(index))
	if err != nil && err != io.EOF {
		log.Panic(newError(KindDeviceIO, fmt.Sprintf("sector read failed at (%d): %s", index, err.Error())))
	}

	if n != len(buffer) {
		log.Panic(newError(KindDeviceIO, fmt.Sprintf("short read at sector (%d): got (%d) wanted (%d)", index, n, len(buffer))))
	}

	bd.traceAccess("read", index, buffer)

	return nil
}

// WriteSector writes exactly len(buffer) bytes starting at the given sector
// and waits for the write to be durable before returning.
func (bd *FileBlockDevice) WriteSector(index uint64, buffer []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	n, err := bd.f.WriteAt(buffer, bd.offsetForSector(index))
	if err != nil {
		log.Panic(newError(KindDeviceIO, fmt.Sprintf("sector write failed at (%d): %s", index, err.Error())))
	}

	if n != len(buffer) {
		log.Panic(newError(KindDeviceIO, fmt.Sprintf("short write at sector (%d): wrote (%d) wanted (%d)", index, n, len(buffer))))
	}

	err = bd.f.Sync()
	log.PanicIf(err)

	bd.traceAccess("write", index, buffer)

	return nil
}

// SizeInBytes returns the usable size of the device beyond the base offset.
func (bd *FileBlockDevice) SizeInBytes() (size uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	fi, err := bd.f.Stat()
	log.PanicIf(err)

	total := fi.Size() - bd.baseOffset
	if total < 0 {
		log.Panicf("base offset (%d) exceeds backing file size (%d)", bd.baseOffset, fi.Size())
	}

	return uint64(total), nil
}

// Flush forces any buffered writes to stable storage. Since WriteSector
// already calls Sync per-write, this is a convenience hook for callers that
// batch many sector writes (e.g. format) before requiring durability.
func (bd *FileBlockDevice) Flush() (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	err = bd.f.Sync()
	log.PanicIf(err)

	return nil
}

// ReadCluster reads one full cluster (SectorsPerCluster sectors) into
// `buffer`, which must be exactly ClusterSize bytes.
func ReadCluster(bd BlockDevice, clusterNumber uint64, buffer []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(buffer) != ClusterSize {
		log.Panicf("cluster buffer must be exactly (%d) bytes, got (%d)", ClusterSize, len(buffer))
	}

	firstSector := clusterNumber * SectorsPerCluster

	for i := 0; i < SectorsPerCluster; i++ {
		sectorBuffer := buffer[i*SectorSize : (i+1)*SectorSize]

		err := bd.ReadSector(firstSector+uint64(i), sectorBuffer)
		log.PanicIf(err)
	}

	return nil
}

// WriteCluster writes one full cluster (SectorsPerCluster sectors) from
// `buffer`, which must be exactly ClusterSize bytes.
func WriteCluster(bd BlockDevice, clusterNumber uint64, buffer []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(buffer) != ClusterSize {
		log.Panicf("cluster buffer must be exactly (%d) bytes, got (%d)", ClusterSize, len(buffer))
	}

	firstSector := clusterNumber * SectorsPerCluster

	for i := 0; i < SectorsPerCluster; i++ {
		sectorBuffer := buffer[i*SectorSize : (i+1)*SectorSize]

		err := bd.WriteSector(firstSector+uint64(i), sectorBuffer)
		log.PanicIf(err)
	}

	return nil
}

// wrapPanic normalizes a recovered panic value into an error the way the
// teacher's cluster/sector visitors do throughout structures.go/navigator.go.
//
// A domain *Error must survive unchanged no matter how many recover/repanic
// frames it passes through on its way up -- log.Wrap re-homes anything that
// isn't already a *go-errors.Error into a fresh one, which would strip
// KindOf's ability to recover the original Kind.
func wrapPanic(errRaw interface{}) (err error) {
	if lfsErr, ok := errRaw.(*Error); ok == true {
		return lfsErr
	}

	if asErr, ok := errRaw.(error); ok == true {
		return log.Wrap(asErr)
	}

	return log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
}
