// This package manages the low-level, on-disk storage structures.

package lfs

import (
	"encoding/binary"
	"hash/crc64"

	"github.com/go-restruct/restruct"

	"github.com/dsoprea/go-logging"
)

// defaultEncoding is the byte order every packed record on disk uses.
var defaultEncoding = binary.LittleEndian

// crc64Table is the ECMA-182 table required by spec.md §6 for journal-entry
// checksums.
var crc64Table = crc64.MakeTable(crc64.ECMA)

const (
	// MagicNumber is "LFS2" read little-endian, per spec.md §6.
	MagicNumber uint32 = 0x4C465332

	// Version is the on-disk format revision this package reads and
	// writes.
	Version uint32 = 2

	// LatFree marks a cluster as unallocated.
	LatFree uint64 = 0x0000000000000000

	// LatEnd marks the last cluster of a chain.
	LatEnd uint64 = 0xFFFFFFFFFFFFFFFF

	// LatBad marks a cluster as unusable.
	LatBad uint64 = 0xFFFFFFFFFFFFFFFE

	// MaxChainHops bounds every LAT and directory chain walk so a
	// corrupted cycle can never spin forever.
	MaxChainHops = 1000000

	// SuperBlockSize is the exact on-disk size of a SuperBlock record.
	SuperBlockSize = 512

	// VersionEntrySize is the exact on-disk size of a VersionEntry
	// record.
	VersionEntrySize = 64

	// DirEntrySize is the exact on-disk size of a DirEntry record.
	DirEntrySize = 64

	// JournalEntrySize is the exact on-disk size of a JournalEntry record.
	JournalEntrySize = 64

	// journalChecksumSpan is the prefix of a JournalEntry that the CRC-64
	// covers (spec.md §6: "CRC-64 ECMA-182 over bytes [0..56)").
	journalChecksumSpan = 56

	// VersionEntriesPerCluster is how many fixed-size VersionEntry
	// records fit in one cluster.
	VersionEntriesPerCluster = ClusterSize / VersionEntrySize

	// DirEntriesPerCluster is how many fixed-size DirEntry records fit in
	// one cluster.
	DirEntriesPerCluster = ClusterSize / DirEntrySize

	// JournalEntriesPerSector is how many fixed-size JournalEntry records
	// fit in one sector.
	JournalEntriesPerSector = SectorSize / JournalEntrySize

	// NameFieldLength is the on-disk size, in bytes, of a VersionEntry or
	// DirEntry name field (NUL-terminated).
	NameFieldLength = 32

	// MaxNameLength is the largest usable name, excluding the mandatory
	// NUL terminator (spec.md §3, §8: a 23-byte name succeeds, 24 fails).
	MaxNameLength = 23

	// MasterLevelName is the level a path segment without a `:level` suffix
	// selects. Format gives the root directory this level; `create` adds no
	// levels to a new leveled directory.
	MasterLevelName = "master"
)

// SuperBlock is the fixed 512-byte record at sector 0 (and its backup
// copy), normatively described in spec.md §3. Only the fields the flat-LAT
// core actually consumes are kept; the original implementation's
// partially-wired hierarchical allocator fields (litStartCluster,
// labPool*, levelRegistry*, ...) are the "HLAT" spec.md §9 explicitly
// leaves unspecified and are not carried forward.
type SuperBlock struct {
	Magic   uint32
	Version uint32

	TotalSectors uint64
	ClusterSize  uint32

	LatStartCluster uint64
	LatSectorCount  uint64

	JournalStartCluster uint64
	JournalSectorCount  uint64

	LastTxID uint64

	RootDirCluster  uint64
	BackupSBCluster uint64

	VolumeName [NameFieldLength]byte

	Padding [SuperBlockSize - 4 - 4 - 8 - 4 - 8 - 8 - 8 - 8 - 8 - 8 - 8 - NameFieldLength]byte
}

// PackSuperBlock serializes a SuperBlock into exactly SuperBlockSize bytes.
func PackSuperBlock(sb *SuperBlock) (raw []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	raw, err = restruct.Pack(defaultEncoding, sb)
	log.PanicIf(err)

	if len(raw) != SuperBlockSize {
		log.Panicf("packed superblock has wrong size: (%d) != (%d)", len(raw), SuperBlockSize)
	}

	return raw, nil
}

// UnpackSuperBlock deserializes a SuperBlock from exactly SuperBlockSize
// bytes.
func UnpackSuperBlock(raw []byte) (sb *SuperBlock, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(raw) != SuperBlockSize {
		log.Panicf("superblock buffer has wrong size: (%d) != (%d)", len(raw), SuperBlockSize)
	}

	sb = new(SuperBlock)

	err = restruct.Unpack(raw, defaultEncoding, sb)
	log.PanicIf(err)

	return sb, nil
}

// IsMagicValid checks the mandatory magic number (spec.md §3, §6).
func (sb *SuperBlock) IsMagicValid() bool {
	return sb.Magic == MagicNumber
}

// VolumeNameString decodes the fixed volume-name field.
func (sb *SuperBlock) VolumeNameString() string {
	return DecodeName(sb.VolumeName[:])
}

// SetVolumeName encodes a volume name into the fixed field, truncating at
// NameFieldLength-1 to always leave room for the NUL terminator.
func (sb *SuperBlock) SetVolumeName(name string) {
	if len(name) > NameFieldLength-1 {
		name = name[:NameFieldLength-1]
	}

	encoded := EncodeName(name, NameFieldLength)
	copy(sb.VolumeName[:], encoded)
}

// EntryType enumerates the kinds of DirEntry, matching spec.md §3 exactly
// (and the original implementation's EntryType enum).
type EntryType uint8

const (
	// TypeFree marks a reusable DirEntry slot.
	TypeFree EntryType = 0

	// TypeFile is a regular file.
	TypeFile EntryType = 1

	// TypeLeveledDir is a directory with its own level table.
	TypeLeveledDir EntryType = 2

	// TypeSymlink is a single-cluster target-path pointer.
	TypeSymlink EntryType = 3

	// TypeHardlink shares a data chain with another entry via reference
	// count.
	TypeHardlink EntryType = 4

	// TypeLevelMount is reserved for entries that bind a name directly to
	// a level rather than a file/directory (spec.md §3 "level-mount").
	TypeLevelMount EntryType = 5
)

// String names an EntryType the way the shell's `look` verb prints it.
func (et EntryType) String() string {
	switch et {
	case TypeFree:
		return "FREE"
	case TypeFile:
		return "FILE"
	case TypeLeveledDir:
		return "DIR"
	case TypeSymlink:
		return "SYMLINK"
	case TypeHardlink:
		return "HARDLINK"
	case TypeLevelMount:
		return "LEVEL-MOUNT"
	default:
		return "UNKNOWN"
	}
}

// VersionEntry is the exact 64-byte record that binds a level name to a
// content-table cluster (spec.md §3). The same content-table cluster MAY
// appear in VersionEntries of more than one directory -- that is the
// sharing mechanism §4.5's `link` operation uses to build a DAG.
type VersionEntry struct {
	Name           [NameFieldLength]byte
	ContentCluster uint64
	ParentLevelID  uint64
	LevelID        uint64
	Flags          uint32
	Active         uint8
	Padding        [3]byte
}

// Level flag bits, carried forward from the original implementation's
// fs_common.hpp (spec.md §3 calls these "reserved"). `link` sets
// LevelFlagShared on the level it creates; nothing in this package reads
// it back, and `look`/`dir-tree` do not print level flags.
const (
	LevelFlagActive   uint32 = 0x0001
	LevelFlagLocked   uint32 = 0x0002
	LevelFlagSnapshot uint32 = 0x0004
	LevelFlagShared   uint32 = 0x0008
	LevelFlagDerived  uint32 = 0x0010
)

// IsActive reports whether this slot holds a live level binding.
func (ve *VersionEntry) IsActive() bool {
	return ve.Active != 0
}

// NameString decodes the level name.
func (ve *VersionEntry) NameString() string {
	return DecodeName(ve.Name[:])
}

// SetName encodes a level name, enforcing the MaxNameLength limit.
func (ve *VersionEntry) SetName(name string) (err error) {
	err = validateName(name)
	if err != nil {
		return err
	}

	copy(ve.Name[:], EncodeName(name, NameFieldLength))

	return nil
}

// PackVersionEntry serializes a VersionEntry into exactly VersionEntrySize
// bytes.
func PackVersionEntry(ve *VersionEntry) (raw []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	raw, err = restruct.Pack(defaultEncoding, ve)
	log.PanicIf(err)

	if len(raw) != VersionEntrySize {
		log.Panicf("packed version-entry has wrong size: (%d) != (%d)", len(raw), VersionEntrySize)
	}

	return raw, nil
}

// UnpackVersionEntry deserializes a VersionEntry from exactly
// VersionEntrySize bytes.
func UnpackVersionEntry(raw []byte) (ve *VersionEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(raw) != VersionEntrySize {
		log.Panicf("version-entry buffer has wrong size: (%d) != (%d)", len(raw), VersionEntrySize)
	}

	ve = new(VersionEntry)

	err = restruct.Unpack(raw, defaultEncoding, ve)
	log.PanicIf(err)

	return ve, nil
}

// Permission bitmask bits and file flags, carried forward from the original
// implementation's permissions.hpp (spec.md §9: "reserve the bits").
const (
	PermRead  uint32 = 0x01
	PermWrite uint32 = 0x02
	PermExec  uint32 = 0x04

	PermDefault     uint32 = PermRead | PermWrite
	PermRootDefault uint32 = PermRead | PermWrite | PermExec
	PermDirDefault  uint32 = PermRead | PermWrite | PermExec

	PermHidden   uint32 = 0x10
	PermSystem   uint32 = 0x20
	PermReadonly uint32 = 0x40

	FileFlagImmutable  uint32 = 0x0100
	FileFlagEncrypted  uint32 = 0x0200
	FileFlagCompressed uint32 = 0x0400

	// refCountShift is where, within DirEntry.Attributes, the hardlink
	// reference count is overlaid on top of the permission bits (spec.md
	// §3 "Special entity: hardlink reference count").
	refCountShift = 16
	refCountMask  = 0xFFFF
)

// DirEntry is the exact 64-byte record that lists one file-like object
// inside a content table (spec.md §3).
type DirEntry struct {
	Name         [NameFieldLength]byte
	Type         uint8
	StartCluster uint64
	Size         uint64
	Attributes   uint32
	CreateTime   uint32
	ModTime      uint32
	Padding      [3]byte
}

// EntryType decodes the Type byte.
func (de *DirEntry) EntryType() EntryType {
	return EntryType(de.Type)
}

// IsFree reports whether this slot is reusable.
func (de *DirEntry) IsFree() bool {
	return de.EntryType() == TypeFree
}

// NameString decodes the entry name.
func (de *DirEntry) NameString() string {
	return DecodeName(de.Name[:])
}

// SetName encodes an entry name, enforcing the MaxNameLength limit.
func (de *DirEntry) SetName(name string) (err error) {
	err = validateName(name)
	if err != nil {
		return err
	}

	copy(de.Name[:], EncodeName(name, NameFieldLength))

	return nil
}

// Permissions returns the low permission bits of Attributes.
func (de *DirEntry) Permissions() uint32 {
	return de.Attributes & (PermRead | PermWrite | PermExec | PermHidden | PermSystem | PermReadonly)
}

// SetPermissions replaces the low permission bits of Attributes, leaving
// the overlaid reference count (if any) untouched.
func (de *DirEntry) SetPermissions(perms uint32) {
	de.Attributes = (de.Attributes &^ 0xFFFF) | (perms & 0xFFFF)
}

// RefCount returns the hardlink reference count overlaid on Attributes.
// Only meaningful for TypeFile and TypeHardlink entries (spec.md §3).
func (de *DirEntry) RefCount() uint32 {
	return (de.Attributes >> refCountShift) & refCountMask
}

// SetRefCount replaces the overlaid reference count, leaving the
// permission bits untouched.
func (de *DirEntry) SetRefCount(count uint32) {
	de.Attributes = (de.Attributes &^ (refCountMask << refCountShift)) | ((count & refCountMask) << refCountShift)
}

// PackDirEntry serializes a DirEntry into exactly DirEntrySize bytes.
func PackDirEntry(de *DirEntry) (raw []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	raw, err = restruct.Pack(defaultEncoding, de)
	log.PanicIf(err)

	if len(raw) != DirEntrySize {
		log.Panicf("packed dir-entry has wrong size: (%d) != (%d)", len(raw), DirEntrySize)
	}

	return raw, nil
}

// UnpackDirEntry deserializes a DirEntry from exactly DirEntrySize bytes.
func UnpackDirEntry(raw []byte) (de *DirEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(raw) != DirEntrySize {
		log.Panicf("dir-entry buffer has wrong size: (%d) != (%d)", len(raw), DirEntrySize)
	}

	de = new(DirEntry)

	err = restruct.Unpack(raw, defaultEncoding, de)
	log.PanicIf(err)

	return de, nil
}

// OpType enumerates journal operation types (spec.md §3, §4.4), naming
// constants after the original implementation's fs_common.hpp OP_* codes.
type OpType uint32

const (
	OpCreate      OpType = 1
	OpWrite       OpType = 2
	OpDelete      OpType = 3
	OpUpdateDir   OpType = 4
	OpMkdir       OpType = 5
	OpLevelCreate OpType = 6
	OpLevelLink   OpType = 7
)

// String names an OpType for log/diagnostic output.
func (ot OpType) String() string {
	switch ot {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpDelete:
		return "DELETE"
	case OpUpdateDir:
		return "UPDATE_DIR"
	case OpMkdir:
		return "MKDIR"
	case OpLevelCreate:
		return "LEVEL_CREATE"
	case OpLevelLink:
		return "LEVEL_LINK"
	default:
		return "UNKNOWN"
	}
}

// JournalStatus enumerates the three-state transaction lifecycle (spec.md
// §3, §4.4).
type JournalStatus uint32

const (
	StatusPending   JournalStatus = 0
	StatusCommitted JournalStatus = 1
	StatusAborted   JournalStatus = 2
)

// String names a JournalStatus for log/diagnostic output.
func (js JournalStatus) String() string {
	switch js {
	case StatusPending:
		return "PENDING"
	case StatusCommitted:
		return "COMMITTED"
	case StatusAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// journalMetadataFieldLength is 16 bytes: with the other six fixed-width
// fields (8+4+4+8+8+8 = 40 bytes) this brings the CRC-covered prefix to
// exactly journalChecksumSpan (56) bytes, and the record plus its trailing
// 8-byte checksum to exactly JournalEntrySize (64) bytes -- reconciling
// spec.md §3's "exactly 64 bytes" / "CRC over first 56 bytes" invariants,
// which the original's 24-byte metadata field (yielding a 72-byte record)
// does not actually satisfy. See DESIGN.md.
const journalMetadataFieldLength = 16

// JournalEntry is the exact 64-byte write-ahead log record (spec.md §3).
type JournalEntry struct {
	TxID          uint64
	OpType        uint32
	Status        uint32
	TargetCluster uint64
	LevelID       uint64
	Timestamp     uint64
	Metadata      [journalMetadataFieldLength]byte
	Checksum      uint64
}

// MetadataString decodes the metadata field (typically an entry name).
func (je *JournalEntry) MetadataString() string {
	return DecodeName(je.Metadata[:])
}

// SetMetadata encodes the metadata field, truncating to fit.
func (je *JournalEntry) SetMetadata(metadata string) {
	copy(je.Metadata[:], EncodeName(metadata, journalMetadataFieldLength))
}

// PackJournalEntry serializes a JournalEntry into exactly JournalEntrySize
// bytes, recomputing the checksum over the first journalChecksumSpan bytes.
func PackJournalEntry(je *JournalEntry) (raw []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	raw, err = restruct.Pack(defaultEncoding, je)
	log.PanicIf(err)

	if len(raw) != JournalEntrySize {
		log.Panicf("packed journal-entry has wrong size: (%d) != (%d)", len(raw), JournalEntrySize)
	}

	checksum := crc64.Checksum(raw[:journalChecksumSpan], crc64Table)
	defaultEncoding.PutUint64(raw[journalChecksumSpan:], checksum)

	return raw, nil
}

// UnpackJournalEntry deserializes a JournalEntry from exactly
// JournalEntrySize bytes.
func UnpackJournalEntry(raw []byte) (je *JournalEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if len(raw) != JournalEntrySize {
		log.Panicf("journal-entry buffer has wrong size: (%d) != (%d)", len(raw), JournalEntrySize)
	}

	je = new(JournalEntry)

	err = restruct.Unpack(raw, defaultEncoding, je)
	log.PanicIf(err)

	return je, nil
}

// VerifyChecksum recomputes the CRC-64 over the first journalChecksumSpan
// bytes of the packed form and compares it against the stored checksum.
func VerifyChecksum(raw []byte) (ok bool) {
	if len(raw) != JournalEntrySize {
		return false
	}

	expected := crc64.Checksum(raw[:journalChecksumSpan], crc64Table)
	actual := defaultEncoding.Uint64(raw[journalChecksumSpan:])

	return expected == actual
}

// validateName enforces spec.md §7's InvalidName rule: empty, longer than
// MaxNameLength, or containing a forbidden character.
func validateName(name string) (err error) {
	if len(name) == 0 {
		return newError(KindInvalidName, "name must not be empty")
	}

	if len(name) > MaxNameLength {
		return newErrorf(KindInvalidName, "name exceeds (%d) bytes: [%s]", MaxNameLength, name)
	}

	const forbidden = `/\:*?"<>|`
	for _, r := range name {
		for _, f := range forbidden {
			if r == f {
				return newErrorf(KindInvalidName, "name contains forbidden character %q: [%s]", f, name)
			}
		}
	}

	return nil
}
