package engine

import (
	stderrors "errors"

	"github.com/gofatfs/fatfs/direntry"
	"github.com/gofatfs/fatfs/directory"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/file"
)

// resolveParent walks path's components, returning the directory that
// should contain the final component and that component's name.
func (v *Volume) resolveParent(path string) (*directory.Directory, string, error) {
	components := directory.SplitPath(path)
	return directory.Resolve(v.RootDir(), components)
}

// OpenFile opens path for positioned read/write. createIfMissing controls
// whether a missing file is created instead of failing with ErrNotFound.
func (v *Volume) OpenFile(path string, createIfMissing bool) (*file.Handle, error) {
	dir, name, err := v.resolveParent(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.ErrIsADirectory
	}

	entry, err := dir.Lookup(name)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) || !createIfMissing {
			return nil, err
		}
		entry, err = dir.Create(name, 0)
		if err != nil {
			return nil, err
		}
	} else if entry.Dirent.IsDir() {
		return nil, errors.ErrIsADirectory
	}

	return file.Open(v.shim, v.geo, v.table, dir, entry, v.clock(), v.options.UpdateAccessedDate), nil
}

// Mkdir creates a new directory at path.
func (v *Volume) Mkdir(path string) error {
	dir, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.ErrExists
	}
	_, _, err = dir.CreateSubdirectory(name)
	return err
}

// Remove deletes the file or empty directory at path.
func (v *Volume) Remove(path string) error {
	dir, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.ErrInvalidArgument
	}

	entry, err := dir.Lookup(name)
	if err != nil {
		return err
	}

	if entry.Dirent.IsDir() {
		empty, err := dir.IsEmptySubdirectory(v.shim, v.geo, entry.Dirent.FirstCluster)
		if err != nil {
			return err
		}
		if !empty {
			return errors.ErrDirectoryNotEmpty
		}
	}

	return dir.Remove(entry)
}

// Rename moves oldPath to newPath. Both must resolve within this volume;
// spec.md §9 treats cross-volume moves as the caller's responsibility,
// which Rename enforces implicitly since both paths are resolved against
// the same mounted Volume.
func (v *Volume) Rename(oldPath, newPath string) error {
	srcDir, oldName, err := v.resolveParent(oldPath)
	if err != nil {
		return err
	}
	dstDir, newName, err := v.resolveParent(newPath)
	if err != nil {
		return err
	}
	if oldName == "" || newName == "" {
		return errors.ErrInvalidArgument
	}

	return directory.Rename(srcDir, dstDir, oldName, newName)
}

// ReadDir lists the entries of the directory at path, leaving out the `.`
// and `..` pseudo-entries.
func (v *Volume) ReadDir(path string) ([]*direntry.Dirent, error) {
	dir, name, err := v.resolveParent(path)
	if err != nil {
		return nil, err
	}

	target := dir
	if name != "" {
		entry, err := dir.Lookup(name)
		if err != nil {
			return nil, err
		}
		if !entry.Dirent.IsDir() {
			return nil, errors.ErrNotADirectory
		}
		target = directory.OpenSub(v.shim, v.geo, v.table, entry.Dirent.FirstCluster, v.clock())
	}

	entries, err := target.List()
	if err != nil {
		return nil, err
	}

	dirents := make([]*direntry.Dirent, 0, len(entries))
	for _, e := range entries {
		if e.Dirent.ShortName == "." || e.Dirent.ShortName == ".." {
			continue
		}
		dirents = append(dirents, e.Dirent)
	}
	return dirents, nil
}
