// Package file implements the file handle layer: a positioned cursor over a
// cluster chain supporting read, write, seek, and truncate, with lazy
// extension and dirty-flag-driven flush back to the owning directory entry.
// Grounded on spec.md §4.6; the teacher's own file_systems/fat/driverbase.go
// only exposes whole-file ReadFile/WriteFile, so the positioned-I/O shape
// here is built directly from the specification in the teacher's idiom.
package file

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/directory"
	"github.com/gofatfs/fatfs/diskolog"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/fat"
	"github.com/gofatfs/fatfs/volume"
)

// dropLogger reports flush failures discovered when a Handle is garbage
// collected without having been explicitly closed -- spec.md §7's "logged
// to a caller-visible mechanism" path, since a finalizer has no return value
// to hand the error to.
var dropLogger = diskolog.New(os.Stderr)

// Handle is an open file's read/write/seek/truncate cursor. It borrows from
// the volume and the directory that owns its entry; callers must Flush or
// Close before unmounting.
type Handle struct {
	shim  *blockio.Shim
	geo   *volume.Geometry
	table *fat.Table
	dir   *directory.Directory
	entry *directory.Entry

	firstCluster fat.ClusterID
	chain        []fat.ClusterID
	position     int64
	size         uint32
	dirty        bool
	accessedOnly bool

	updateAccessedDate bool
	now                directory.TimeSource
}

// Open constructs a Handle over entry's data within dir. The returned
// Handle carries a finalizer that flushes and logs on garbage collection if
// the caller never called Close; explicit Close or Flush remains the only
// durability guarantee spec.md §7 makes.
func Open(shim *blockio.Shim, geo *volume.Geometry, table *fat.Table, dir *directory.Directory, entry *directory.Entry, now directory.TimeSource, updateAccessedDate bool) *Handle {
	h := &Handle{
		shim:               shim,
		geo:                geo,
		table:              table,
		dir:                dir,
		entry:              entry,
		firstCluster:       fat.ClusterID(entry.Dirent.FirstCluster),
		size:               entry.Dirent.SizeBytes,
		now:                now,
		updateAccessedDate: updateAccessedDate,
	}
	runtime.SetFinalizer(h, finalizeHandle)
	return h
}

// finalizeHandle is the finalizer Open installs. It runs only if the caller
// dropped the Handle without calling Close.
func finalizeHandle(h *Handle) {
	if !h.dirty {
		return
	}
	if err := h.Flush(); err != nil {
		dropLogger.FlushFailure(h.entry.Dirent.Name(), err)
	}
}

// Size returns the file's current length in bytes.
func (h *Handle) Size() int64 {
	return int64(h.size)
}

func (h *Handle) loadChain() error {
	if h.chain != nil {
		return nil
	}
	chain, err := h.table.ListChain(h.firstCluster)
	if err != nil {
		return err
	}
	if chain == nil {
		chain = []fat.ClusterID{}
	}
	h.chain = chain
	return nil
}

// Seek repositions the cursor. Seeking past end-of-file is permitted; a
// subsequent write extends the file, per spec.md §4.6.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = h.position + offset
	case io.SeekEnd:
		target = int64(h.size) + offset
	default:
		return 0, errors.ErrInvalidArgument
	}
	if target < 0 {
		return 0, errors.ErrInvalidArgument
	}
	h.position = target
	return target, nil
}

// Read fills p starting at the current position, advancing it, and returns
// io.EOF once the cursor reaches the file's size. It never reads beyond
// size, so bytes past the end of the file are never exposed; a gap left by
// seeking past the end and then writing reads back as whatever the newly
// allocated cluster already held.
func (h *Handle) Read(p []byte) (int, error) {
	if h.position >= int64(h.size) {
		return 0, io.EOF
	}
	if err := h.loadChain(); err != nil {
		return 0, err
	}

	remaining := int64(h.size) - h.position
	toRead := int64(len(p))
	if toRead > remaining {
		toRead = remaining
	}

	var read int64
	for read < toRead {
		clusterIdx := int((h.position + read) / int64(h.geo.BytesPerCluster))
		offsetInCluster := (h.position + read) % int64(h.geo.BytesPerCluster)
		if clusterIdx >= len(h.chain) {
			return int(read), errors.ErrFileSystemCorrupted.WithMessage("file size exceeds its allocated chain")
		}

		chunk := int64(h.geo.BytesPerCluster) - offsetInCluster
		if chunk > toRead-read {
			chunk = toRead - read
		}

		absolute := h.geo.ClusterToOffset(uint32(h.chain[clusterIdx])) + offsetInCluster
		if err := h.shim.ReadExact(absolute, p[read:read+chunk]); err != nil {
			return int(read), err
		}
		read += chunk
	}

	h.position += read
	if h.updateAccessedDate {
		h.accessedOnly = true
		h.dirty = true
	}
	return int(read), nil
}

// Write writes p at the current position, advancing it and extending the
// file's cluster chain and size as needed.
func (h *Handle) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := h.loadChain(); err != nil {
		return 0, err
	}

	var written int64
	for written < int64(len(p)) {
		clusterIdx := int((h.position + written) / int64(h.geo.BytesPerCluster))
		offsetInCluster := (h.position + written) % int64(h.geo.BytesPerCluster)

		if err := h.ensureClusterExists(clusterIdx); err != nil {
			return int(written), err
		}

		chunk := int64(h.geo.BytesPerCluster) - offsetInCluster
		if chunk > int64(len(p))-written {
			chunk = int64(len(p)) - written
		}

		absolute := h.geo.ClusterToOffset(uint32(h.chain[clusterIdx])) + offsetInCluster
		if err := h.shim.WriteAll(absolute, p[written:written+chunk]); err != nil {
			return int(written), err
		}
		written += chunk
	}

	h.position += written
	if uint32(h.position) > h.size {
		h.size = uint32(h.position)
	}
	h.dirty = true
	h.accessedOnly = false
	return int(written), nil
}

// ensureClusterExists grows the chain, allocating new clusters, until index
// clusterIdx is valid.
func (h *Handle) ensureClusterExists(clusterIdx int) error {
	if clusterIdx < len(h.chain) {
		return nil
	}

	if len(h.chain) == 0 {
		head, err := h.table.AllocateChain(1)
		if err != nil {
			return err
		}
		h.firstCluster = head
		h.chain = append(h.chain, head)
	}

	for len(h.chain) <= clusterIdx {
		next, err := h.table.ExtendChain(h.chain[len(h.chain)-1])
		if err != nil {
			return err
		}
		h.chain = append(h.chain, next)
	}
	return nil
}

// Truncate sets the file's size to newSize, freeing any clusters beyond
// what's needed to hold it. Growing via Truncate does not allocate; only
// Write does.
func (h *Handle) Truncate(newSize int64) error {
	if newSize < 0 {
		return errors.ErrInvalidArgument
	}
	if err := h.loadChain(); err != nil {
		return err
	}

	neededClusters := 0
	if newSize > 0 {
		neededClusters = int((newSize + int64(h.geo.BytesPerCluster) - 1) / int64(h.geo.BytesPerCluster))
	}

	if neededClusters < len(h.chain) {
		if neededClusters == 0 {
			if err := h.table.FreeChain(h.firstCluster); err != nil {
				return err
			}
			h.firstCluster = 0
			h.chain = []fat.ClusterID{}
		} else {
			tail := h.chain[neededClusters-1]
			next, err := h.table.Get(tail)
			if err != nil {
				return err
			}
			if err := h.table.Set(tail, h.table.EndOfChainValue()); err != nil {
				return err
			}
			if !h.table.IsEndOfChain(next) {
				if err := h.table.FreeChain(next); err != nil {
					return err
				}
			}
			h.chain = h.chain[:neededClusters]
		}
	}

	h.size = uint32(newSize)
	if h.position > newSize {
		h.position = newSize
	}
	h.dirty = true
	h.accessedOnly = false
	return nil
}

// Flush writes pending size, first-cluster, and timestamp changes back to
// the backing directory entry. A no-op if nothing is dirty.
func (h *Handle) Flush() error {
	if !h.dirty {
		return nil
	}

	now := h.clock()
	d := h.entry.Dirent
	d.FirstCluster = uint32(h.firstCluster)
	d.SizeBytes = h.size
	d.LastAccessedAt = now
	if !h.accessedOnly {
		d.LastModifiedAt = now
	}

	if err := h.dir.UpdateEntry(h.entry, d); err != nil {
		return err
	}
	h.dirty = false
	h.accessedOnly = false
	return nil
}

// Close flushes and releases the handle. Per spec.md §4.6, a failure here
// has nowhere caller-visible to go except the returned error; durability-
// sensitive callers should call Flush explicitly beforehand.
func (h *Handle) Close() error {
	runtime.SetFinalizer(h, nil)
	return h.Flush()
}

func (h *Handle) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Time{}
}
