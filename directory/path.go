package directory

import (
	"strings"

	"github.com/gofatfs/fatfs/errors"
)

// SplitPath breaks a path on both `/` and `\` (the latter a host
// convenience per spec.md §4.5), dropping empty components.
func SplitPath(path string) []string {
	fields := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return fields
}

// Child opens name as a subdirectory of d. `.` returns d itself without a
// lookup; every other name, `..` included, is looked up in d, so `..`
// follows a subdirectory's on-disk `..` entry (a stored 0 opens the root)
// and fails with ErrNotFound in the root directory, which has none. Fails
// with ErrNotFound if name doesn't exist, ErrNotADirectory if it does but
// isn't a directory.
func (d *Directory) Child(name string) (*Directory, *Entry, error) {
	if name == "." {
		return d, nil, nil
	}

	entry, err := d.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	if !entry.Dirent.IsDir() {
		return nil, nil, errors.ErrNotADirectory
	}

	shim, geo := d.region.shim, d.region.geo
	if name == ".." && entry.Dirent.FirstCluster == 0 {
		// ".." in a directory whose parent is the FAT12/16 fixed root
		// stores 0, since that region has no cluster identity of its own.
		return OpenRoot(shim, geo, d.table, d.now), entry, nil
	}
	child := OpenSub(shim, geo, d.table, entry.Dirent.FirstCluster, d.now)
	return child, entry, nil
}

// Resolve walks components from d, returning the directory containing the
// final component and that component's name -- the shape every caller that
// wants to create, remove, or look up a leaf needs. An empty components
// slice resolves to (d, "").
func Resolve(root *Directory, components []string) (*Directory, string, error) {
	if len(components) == 0 {
		return root, "", nil
	}

	current := root
	for _, c := range components[:len(components)-1] {
		next, _, err := current.Child(c)
		if err != nil {
			return nil, "", err
		}
		current = next
	}
	return current, components[len(components)-1], nil
}
