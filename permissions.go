// This package implements the permission model carried forward from the
// original implementation's permissions.hpp: a 3-bit read/write/exec mask
// per DirEntry, cumulative AND-of-ancestors path resolution, and a
// short-lived cache over resolved path permissions (spec.md §9).

package lfs

import (
	"sync"
	"time"
)

// permissionCacheMaxEntries and permissionCacheTTL mirror the original
// implementation's PermissionCache (MAX_ENTRIES, TTL_SECONDS).
const (
	permissionCacheMaxEntries = 64
	permissionCacheTTL        = 30 * time.Second
)

type permissionCacheEntry struct {
	path      string
	perms     uint32
	cachedAt  time.Time
}

// PermissionCache holds resolved, cumulative path permissions for a short
// time so repeated ResolvePathPermissions calls for the same path don't
// re-walk the path on every call.
type PermissionCache struct {
	mutex   sync.Mutex
	entries []permissionCacheEntry
}

// NewPermissionCache returns an empty cache.
func NewPermissionCache() *PermissionCache {
	return &PermissionCache{
		entries: make([]permissionCacheEntry, 0, permissionCacheMaxEntries),
	}
}

func (pc *PermissionCache) removeExpiredLocked() {
	now := time.Now()

	fresh := pc.entries[:0]
	for _, e := range pc.entries {
		if now.Sub(e.cachedAt) <= permissionCacheTTL {
			fresh = append(fresh, e)
		}
	}

	pc.entries = fresh
}

// Add records (or refreshes) the cumulative permissions resolved for path.
func (pc *PermissionCache) Add(path string, perms uint32) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.removeExpiredLocked()

	for i := range pc.entries {
		if pc.entries[i].path == path {
			pc.entries[i].perms = perms
			pc.entries[i].cachedAt = time.Now()
			return
		}
	}

	if len(pc.entries) >= permissionCacheMaxEntries {
		pc.entries = pc.entries[1:]
	}

	pc.entries = append(pc.entries, permissionCacheEntry{
		path:     path,
		perms:    perms,
		cachedAt: time.Now(),
	})
}

// Get returns the cached permissions for path, if present and unexpired.
func (pc *PermissionCache) Get(path string) (perms uint32, found bool) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.removeExpiredLocked()

	for _, e := range pc.entries {
		if e.path == path {
			return e.perms, true
		}
	}

	return 0, false
}

// InvalidateAll drops every cached entry. Called whenever a permission
// write (chmod-equivalent) lands, since any cached path under the changed
// entry may now be stale.
func (pc *PermissionCache) InvalidateAll() {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.entries = pc.entries[:0]
}

// HasRead, HasWrite, and HasExec test individual bits of a permission mask.
func HasRead(perms uint32) bool  { return perms&PermRead != 0 }
func HasWrite(perms uint32) bool { return perms&PermWrite != 0 }
func HasExec(perms uint32) bool  { return perms&PermExec != 0 }

// IsHidden, IsSystem, IsReadonly, IsImmutable, IsEncrypted, and IsCompressed
// test the remaining attribute/flag bits DirEntry.Attributes carries.
func IsHidden(attrs uint32) bool     { return attrs&PermHidden != 0 }
func IsSystem(attrs uint32) bool     { return attrs&PermSystem != 0 }
func IsReadonly(attrs uint32) bool   { return attrs&PermReadonly != 0 }
func IsImmutable(attrs uint32) bool  { return attrs&FileFlagImmutable != 0 }
func IsEncrypted(attrs uint32) bool  { return attrs&FileFlagEncrypted != 0 }
func IsCompressed(attrs uint32) bool { return attrs&FileFlagCompressed != 0 }

// PermissionString renders the rwx triplet the `look` verb prints.
func PermissionString(perms uint32) string {
	render := func(set bool, c byte) byte {
		if set {
			return c
		}
		return '-'
	}

	b := []byte{
		render(HasRead(perms), 'r'),
		render(HasWrite(perms), 'w'),
		render(HasExec(perms), 'x'),
	}

	return string(b)
}

// ApplyPermissionOption applies one of the "+r"/"-r"/"+w"/"-w"/"+x"/"-x"/
// "+h"/"-h"/"+s"/"-s" toggles the original implementation's
// PermissionChecker::parsePermString supported, returning the updated mask.
func ApplyPermissionOption(option string, current uint32) uint32 {
	switch option {
	case "+r":
		return current | PermRead
	case "-r":
		return current &^ PermRead
	case "+w":
		return current | PermWrite
	case "-w":
		return current &^ PermWrite
	case "+x":
		return current | PermExec
	case "-x":
		return current &^ PermExec
	case "+h":
		return current | PermHidden
	case "-h":
		return current &^ PermHidden
	case "+s":
		return current | PermSystem
	case "-s":
		return current &^ PermSystem
	default:
		return current
	}
}

// IsValidPermissionOption reports whether option is one of the toggles
// ApplyPermissionOption understands.
func IsValidPermissionOption(option string) bool {
	switch option {
	case "+r", "-r", "+w", "-w", "+x", "-x", "+h", "-h", "+s", "-s":
		return true
	default:
		return false
	}
}
