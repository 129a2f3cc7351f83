// This package implements the supplemented `attrset` verb (a chmod-style
// permission toggle) and the cumulative, cached path-permission walk
// (spec.md §9, permissions.hpp's PermissionResolver). The path resolver
// itself checks no permissions.

package lfs

import (
	"github.com/dsoprea/go-logging"
)

// Attrset applies one of the "+r"/"-r"/.../"+s"/"-s" toggles
// ApplyPermissionOption understands to the entry `path` resolves to, and
// invalidates the permission cache since any path under it may now read
// differently.
func (fs *Filesystem) Attrset(path, option string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if IsValidPermissionOption(option) != true {
		return newErrorf(KindInvalidName, "unrecognized attrset option: [%s]", option)
	}

	resolved, err := fs.resolver.Resolve(path)
	log.PanicIf(err)

	if resolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", path)
	}

	de, location, found, err := fs.dirStore.FindEntry(resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "entry not found: [%s]", path)
	}

	updated := ApplyPermissionOption(option, de.Permissions())
	de.SetPermissions(updated)
	de.ModTime = uint32(fs.journal.nowFunc())

	txID, err := fs.journal.LogOperation(OpUpdateDir, resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	err = fs.dirStore.WriteEntryAt(location, de)
	log.PanicIf(err)

	err = fs.journal.CommitOperation(txID)
	log.PanicIf(err)

	fs.perms.InvalidateAll()

	return nil
}

// ResolvePathPermissions walks every segment of `path` from the root,
// requiring read+exec on every intermediate directory, and returns the
// cumulative (bitwise-AND) permission mask -- the same policy
// permissions.hpp's PermissionResolver::resolvePathPermissions implements.
// Results are cached for permissionCacheTTL.
func (fs *Filesystem) ResolvePathPermissions(path string) (perms uint32, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if path == "" || path == "/" {
		return PermRootDefault, nil
	}

	if cached, found := fs.perms.Get(path); found == true {
		return cached, nil
	}

	segments, anchored := splitPath(path)

	cluster := fs.resolver.CurrentCluster()
	if anchored == true {
		cluster, err = fs.rootContentCluster()
		log.PanicIf(err)
	}

	cumulative := PermRootDefault

	for i, segment := range segments {
		de, _, found, err := fs.dirStore.FindEntry(cluster, segment.name)
		log.PanicIf(err)

		if found != true {
			return 0, newErrorf(KindNotFound, "path component not found: [%s]", segment.name)
		}

		cumulative &= de.Permissions()

		isLast := i == len(segments)-1
		if isLast != true {
			if HasExec(de.Permissions()) != true {
				return 0, newErrorf(KindInvalidName, "no execute permission to traverse: [%s]", segment.name)
			}

			if HasRead(de.Permissions()) != true {
				return 0, newErrorf(KindInvalidName, "no read permission to access: [%s]", segment.name)
			}

			if de.EntryType() != TypeLeveledDir {
				return 0, newErrorf(KindNotFound, "not a directory: [%s]", segment.name)
			}

			ve, _, found, err := fs.dirStore.FindLevel(de.StartCluster, segment.level)
			log.PanicIf(err)

			if found != true {
				return 0, newErrorf(KindNotFound, "level not found: [%s]", segment.level)
			}

			cluster = ve.ContentCluster
		}
	}

	fs.perms.Add(path, cumulative)

	return cumulative, nil
}
