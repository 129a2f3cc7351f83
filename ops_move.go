// This package implements the move user-visible verb (spec.md §4.7).

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Move resolves both src and dst, copies src's DirEntry into the first
// free slot of dst's parent content table (extending it if necessary),
// renames the copy to dst's final segment, and frees the src slot
// (spec.md §4.7).
func (fs *Filesystem) Move(src, dst string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	srcResolved, err := fs.resolver.Resolve(src)
	log.PanicIf(err)

	if srcResolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", src)
	}

	dstResolved, err := fs.resolver.Resolve(dst)
	log.PanicIf(err)

	if dstResolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", dst)
	}

	srcDE, srcLocation, found, err := fs.dirStore.FindEntry(srcResolved.ParentCluster, srcResolved.FinalName)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "entry not found: [%s]", src)
	}

	_, _, collides, err := fs.dirStore.FindEntry(dstResolved.ParentCluster, dstResolved.FinalName)
	log.PanicIf(err)

	if collides == true {
		return newErrorf(KindAlreadyExists, "entry already exists: [%s]", dst)
	}

	txID, err := fs.journal.LogOperation(OpUpdateDir, dstResolved.ParentCluster, dstResolved.FinalName)
	log.PanicIf(err)

	err = srcDE.SetName(dstResolved.FinalName)
	log.PanicIf(err)

	_, err = fs.dirStore.AddEntry(dstResolved.ParentCluster, srcDE)
	log.PanicIf(err)

	err = fs.dirStore.RemoveEntry(srcLocation)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	fs.perms.InvalidateAll()

	return nil
}
