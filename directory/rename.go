package directory

import "github.com/gofatfs/fatfs/errors"

// Rename moves the entry named oldName in src to newName in dst, preserving
// its first cluster, size, and timestamps. src and dst may be the same
// directory. src and dst must be opened over the same volume: Rename
// compares the block shims behind the two handles and fails with
// ErrInvalidArgument when they differ.
//
// When the moved entry is itself a directory and dst is not src, its own
// `..` entry is rewritten to dst's first cluster, keeping the "`..` points
// to the parent's first cluster" invariant intact across the move.
func Rename(src, dst *Directory, oldName, newName string) error {
	if src.region.shim != dst.region.shim {
		return errors.ErrInvalidArgument
	}

	entry, err := src.Lookup(oldName)
	if err != nil {
		return err
	}

	if _, err := dst.Lookup(newName); err == nil {
		return errors.ErrExists
	}

	if err := src.removeSlotsOnly(entry); err != nil {
		return err
	}

	_, err = dst.insert(
		newName,
		entry.Dirent.AttributeFlags,
		entry.Dirent.FirstCluster,
		entry.Dirent.SizeBytes,
		entry.Dirent.CreatedAt,
		entry.Dirent.LastModifiedAt,
		entry.Dirent.LastAccessedAt,
	)
	if err != nil {
		return err
	}

	if entry.Dirent.IsDir() && dst.FirstCluster() != src.FirstCluster() {
		moved := OpenSub(dst.region.shim, dst.region.geo, dst.table, entry.Dirent.FirstCluster, dst.now)
		return moved.rewriteDotDot(dst.FirstCluster())
	}
	return nil
}
