package lfs

import (
	"fmt"
)

// Kind classifies an LFS error the way spec.md §7 enumerates error kinds.
// Callers can branch on it via KindOf; the shell (cmd/lfsshell) prints
// every error the same way regardless of Kind.
type Kind int

const (
	// KindDeviceIO indicates a sector read/write failed or returned a short
	// count.
	KindDeviceIO Kind = iota + 1

	// KindFilesystemCorrupt indicates the magic mismatched on both
	// superblocks, an LAT chain exceeded its hop bound, or a directory
	// cluster failed the UPDATE_DIR replay read check.
	KindFilesystemCorrupt

	// KindNoSpace indicates the LAT allocator is exhausted.
	KindNoSpace

	// KindNotFound indicates a path segment or entry does not resolve.
	KindNotFound

	// KindAlreadyExists indicates a create/link name collision in the same
	// content chain.
	KindAlreadyExists

	// KindNotEmpty indicates del of a leveled directory without -r while
	// any active level exists.
	KindNotEmpty

	// KindInvalidName indicates a name is too long, empty, or uses a
	// forbidden character.
	KindInvalidName

	// KindSymlinkLoop indicates symlink resolution exceeded its depth
	// limit.
	KindSymlinkLoop

	// KindJournalCorrupt indicates the journal holds no entry for a
	// transaction whose status is being set. Entries whose CRC does not
	// match are skipped during replay and do not raise this kind.
	KindJournalCorrupt
)

// String gives the kind a stable, human-readable name.
func (k Kind) String() string {
	switch k {
	case KindDeviceIO:
		return "DeviceIO"
	case KindFilesystemCorrupt:
		return "FilesystemCorrupt"
	case KindNoSpace:
		return "NoSpace"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindNotEmpty:
		return "NotEmpty"
	case KindInvalidName:
		return "InvalidName"
	case KindSymlinkLoop:
		return "SymlinkLoop"
	case KindJournalCorrupt:
		return "JournalCorrupt"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the concrete error type every LFS operation surfaces. It carries
// the Kind so callers (and the shell) can branch on failure class without
// parsing message text.
type Error struct {
	Kind    Kind
	Message string
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// newError constructs an *Error. It is the LFS-domain equivalent of the
// teacher's log.Errorf, used wherever a failure needs a stable Kind rather
// than just a wrapped string.
func newError(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// newErrorf is the formatted variant of newError.
func newErrorf(kind Kind, format string, args ...interface{}) *Error {
	return newError(kind, fmt.Sprintf(format, args...))
}

// KindOf unwraps an error to its Kind, or 0 if it is not an *Error.
func KindOf(err error) Kind {
	if lfsErr, ok := err.(*Error); ok == true {
		return lfsErr.Kind
	}

	return 0
}
