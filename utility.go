package lfs

import (
	"bytes"
)

// EncodeName writes `name` into a fixed-size, NUL-padded byte field the
// way VersionEntry and DirEntry names are stored on disk. A name of
// fieldLen bytes or more is cut to fieldLen bytes and leaves no NUL.
func EncodeName(name string, fieldLen int) (encoded []byte) {
	encoded = make([]byte, fieldLen)
	copy(encoded, []byte(name))

	return encoded
}

// DecodeName reads a fixed-size, NUL-terminated byte field back into a Go
// string, stopping at the first NUL the way a C string would.
func DecodeName(raw []byte) (name string) {
	nulAt := bytes.IndexByte(raw, 0)
	if nulAt == -1 {
		return string(raw)
	}

	return string(raw[:nulAt])
}
