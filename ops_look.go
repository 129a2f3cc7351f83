// This package implements the look/dir-tree/current diagnostic verbs
// (spec.md §4.7).

package lfs

import (
	"strings"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
)

// Current reports the resolver's current content cluster and level name,
// the way the shell's `current` verb does (spec.md §4.7).
func (fs *Filesystem) Current() (cluster uint64, level string) {
	return fs.resolver.CurrentCluster(), fs.resolver.CurrentLevel()
}

// LookCurrent dumps the active DirEntries of the resolver's current
// content chain (spec.md §4.7 "look with no argument").
func (fs *Filesystem) LookCurrent() (entries []*DirEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	entries, err = fs.dirStore.ReadEntries(fs.resolver.CurrentCluster())
	log.PanicIf(err)

	return entries, nil
}

// LookFolderLevels dumps the level names of the leveled directory `folder`
// resolves to (spec.md §4.7 "look with folder").
func (fs *Filesystem) LookFolderLevels(folder string) (levels []*VersionEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, err := fs.resolveDirectory(folder)
	log.PanicIf(err)

	levels, err = fs.dirStore.ReadLevels(de.StartCluster)
	log.PanicIf(err)

	return levels, nil
}

// LookFolderLevel dumps the DirEntries of the specific content chain named
// by `folder:level` (spec.md §4.7 "look with folder:level").
func (fs *Filesystem) LookFolderLevel(folder, level string) (entries []*DirEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	de, err := fs.resolveDirectory(folder)
	log.PanicIf(err)

	ve, _, found, err := fs.dirStore.FindLevel(de.StartCluster, level)
	log.PanicIf(err)

	if found != true {
		return nil, newErrorf(KindNotFound, "level not found: [%s]", level)
	}

	entries, err = fs.dirStore.ReadEntries(ve.ContentCluster)
	log.PanicIf(err)

	return entries, nil
}

// TreeLine is one rendered row of a DirTree walk: its indentation depth
// and the text to print at that depth.
type TreeLine struct {
	Depth int
	Text  string
}

// DirTree recursively walks every leveled-dir/level pair reachable from
// the resolver's current content cluster and renders the tree as a flat
// sequence of indented lines (spec.md §4.7 "dir-tree").
func (fs *Filesystem) DirTree() (lines []TreeLine, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	lines = make([]TreeLine, 0)

	err = fs.walkTree(fs.resolver.CurrentCluster(), 0, make(map[uint64]bool), &lines)
	log.PanicIf(err)

	return lines, nil
}

func (fs *Filesystem) walkTree(contentCluster uint64, depth int, visited map[uint64]bool, lines *[]TreeLine) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = wrapPanic(errRaw)
		}
	}()

	if visited[contentCluster] == true {
		*lines = append(*lines, TreeLine{Depth: depth, Text: "(already visited, shared level)"})
		return nil
	}
	visited[contentCluster] = true

	entries, err := fs.dirStore.ReadEntries(contentCluster)
	log.PanicIf(err)

	for _, de := range entries {
		line := de.NameString() + " [" + de.EntryType().String() + "]"
		if de.EntryType() == TypeFile || de.EntryType() == TypeHardlink {
			line += " (" + humanize.Bytes(de.Size) + ")"
		}
		*lines = append(*lines, TreeLine{Depth: depth, Text: line})

		if de.EntryType() == TypeLeveledDir {
			levels, err := fs.dirStore.ReadLevels(de.StartCluster)
			log.PanicIf(err)

			for _, ve := range levels {
				*lines = append(*lines, TreeLine{Depth: depth + 1, Text: ":" + ve.NameString()})

				err := fs.walkTree(ve.ContentCluster, depth+2, visited, lines)
				log.PanicIf(err)
			}
		}
	}

	return nil
}

// RenderTree joins DirTree's lines into an indented, human-readable block
// (two spaces per depth level).
func RenderTree(lines []TreeLine) string {
	var b strings.Builder

	for _, line := range lines {
		b.WriteString(strings.Repeat("  ", line.Depth))
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}

	return b.String()
}
