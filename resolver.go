// This package resolves string paths -- with optional `name:level`
// segments -- into (parentCluster, finalName) pairs, and expands symlinks
// on read (spec.md §4.6).

package lfs

import (
	"strings"

	"github.com/dsoprea/go-logging"
)

// maxSymlinkDepth bounds symlink expansion (spec.md §4.6, §7 SymlinkLoop).
const maxSymlinkDepth = 10

// pathSegment is one `/`-delimited component of a path, split into its
// name and optional level.
type pathSegment struct {
	name  string
	level string
}

func parsePathSegment(raw string) pathSegment {
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		return pathSegment{name: raw[:idx], level: raw[idx+1:]}
	}

	return pathSegment{name: raw, level: MasterLevelName}
}

func splitPath(path string) (segments []pathSegment, anchored bool) {
	anchored = strings.HasPrefix(path, "/")

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, anchored
	}

	parts := strings.Split(trimmed, "/")

	segments = make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		segments = append(segments, parsePathSegment(part))
	}

	return segments, anchored
}

// ResolvedPath is the return shape spec.md §4.6 describes: the content
// cluster the final segment lives in, the final segment's bare name, and
// whether resolution succeeded.
type ResolvedPath struct {
	ParentCluster uint64
	FinalName     string
	Valid         bool
}

// Resolver translates path strings into (parentCluster, finalName) pairs
// against a fixed root cluster and a mutable "current" cluster, the way
// the interactive shell's `nav` verb does (spec.md §4.6, §4.7).
type Resolver struct {
	ds   *DirStore
	root uint64

	currentCluster uint64
	currentLevel   string
}

// NewResolver returns a Resolver anchored at rootContentCluster, with its
// current position starting at the root under "master".
func NewResolver(ds *DirStore, rootContentCluster uint64) *Resolver {
	return &Resolver{
		ds:             ds,
		root:           rootContentCluster,
		currentCluster: rootContentCluster,
		currentLevel:   MasterLevelName,
	}
}

// CurrentCluster returns the resolver's current content cluster.
func (r *Resolver) CurrentCluster() uint64 {
	return r.currentCluster
}

// CurrentLevel returns the resolver's current level name.
func (r *Resolver) CurrentLevel() string {
	return r.currentLevel
}

// Nav updates the resolver's current position to the directory path
// resolves to (spec.md §4.7 `nav`).
func (r *Resolver) Nav(path string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	resolved, err := r.Resolve(path)
	log.PanicIf(err)

	if resolved.Valid != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", path)
	}

	de, _, found, err := r.ds.FindEntry(resolved.ParentCluster, resolved.FinalName)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "path does not resolve: [%s]", path)
	}

	if de.EntryType() != TypeLeveledDir {
		return newErrorf(KindNotFound, "not a directory: [%s]", path)
	}

	segments, _ := splitPath(path)
	level := MasterLevelName
	if len(segments) > 0 {
		level = segments[len(segments)-1].level
	}

	ve, _, found, err := r.ds.FindLevel(de.StartCluster, level)
	log.PanicIf(err)

	if found != true {
		return newErrorf(KindNotFound, "level not found: [%s]", level)
	}

	r.currentCluster = ve.ContentCluster
	r.currentLevel = level

	return nil
}

// Resolve walks every segment but the last through the leveled-directory
// structure (spec.md §4.6 step 1-3), returning the content cluster the
// final segment lives in together with its bare name.
func (r *Resolver) Resolve(path string) (resolved ResolvedPath, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	segments, anchored := splitPath(path)

	if len(segments) == 0 {
		return ResolvedPath{ParentCluster: r.root, FinalName: "", Valid: false}, nil
	}

	cluster := r.currentCluster
	if anchored == true {
		cluster = r.root
	}

	for _, segment := range segments[:len(segments)-1] {
		de, _, found, err := r.ds.FindEntry(cluster, segment.name)
		log.PanicIf(err)

		if found != true || de.EntryType() != TypeLeveledDir {
			return ResolvedPath{Valid: false}, nil
		}

		ve, _, found, err := r.ds.FindLevel(de.StartCluster, segment.level)
		log.PanicIf(err)

		if found != true {
			return ResolvedPath{Valid: false}, nil
		}

		cluster = ve.ContentCluster
	}

	final := segments[len(segments)-1]

	return ResolvedPath{ParentCluster: cluster, FinalName: final.name, Valid: true}, nil
}

// FollowSymlinks resolves `path`, and if the entry it names is a symlink,
// reads its target and re-resolves through the same resolver, up to
// maxSymlinkDepth hops (spec.md §4.6, §7 SymlinkLoop).
func (r *Resolver) FollowSymlinks(path string, readChain func(startCluster uint64, size uint64) ([]byte, error)) (de *DirEntry, location EntryLocation, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	currentPath := path

	for depth := 0; ; depth++ {
		if depth > maxSymlinkDepth {
			return nil, EntryLocation{}, newError(KindSymlinkLoop, "symlink resolution exceeded maximum depth")
		}

		resolved, err := r.Resolve(currentPath)
		log.PanicIf(err)

		if resolved.Valid != true {
			return nil, EntryLocation{}, newErrorf(KindNotFound, "path does not resolve: [%s]", currentPath)
		}

		candidate, location, found, err := r.ds.FindEntry(resolved.ParentCluster, resolved.FinalName)
		log.PanicIf(err)

		if found != true {
			return nil, EntryLocation{}, newErrorf(KindNotFound, "entry not found: [%s]", currentPath)
		}

		if candidate.EntryType() != TypeSymlink {
			return candidate, location, nil
		}

		targetRaw, err := readChain(candidate.StartCluster, candidate.Size)
		log.PanicIf(err)

		currentPath = DecodeName(targetRaw)
	}
}
