package lfs

import (
	"time"
)

// unixNow is the default clock every timestamp field in this package uses.
// The journal reads its clock through its nowFunc field, which tests can
// replace for deterministic timestamps.
func unixNow() uint64 {
	return uint64(time.Now().Unix())
}
