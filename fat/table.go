// Package fat implements the File Allocation Table manager: the cluster-chain
// allocator and free-space tracker described by spec.md §4.3, supporting all
// three on-disk encodings (12-bit packed, 16-bit, 28-bit-in-32-bit-word) and
// optional multi-FAT mirroring.
//
// Grounded on dargueta-disko's drivers/common/allocatormap.go (bitmap-backed
// free-space tracking via go-bitmap) and drivers/fat/driverbase.go (chain
// walking and validity checks).
package fat

import (
	"encoding/binary"

	"github.com/boljen/go-bitmap"
	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/volume"
	"github.com/hashicorp/go-multierror"
)

// ClusterID is a cluster number. 0 and 1 are reserved; 2..last_data_cluster
// are valid data clusters; values above that are variant-specific sentinels.
type ClusterID uint32

const (
	firstDataCluster = ClusterID(2)
)

// Table is the FAT manager for a single mounted volume. It owns the
// in-memory free-cluster bitmap and mirrors every write across all configured
// FATs.
type Table struct {
	shim *blockio.Shim
	geo  *volume.Geometry

	freeBitmap   bitmap.Bitmap
	freeCount    uint
	nextFreeHint ClusterID
	scanned      bool

	// freeCountIsHint is true when freeCount came from FAT32's FSInfo sector
	// rather than a real scan; EnsureScanned overwrites it with an exact
	// count the first time anything needs the bitmap.
	freeCountIsHint bool
}

// NewTable constructs a Table for an already-parsed volume. It does not touch
// the disk; free-space accounting is built lazily on first use (matching
// spec.md §4.3's "recount by scanning the FAT" fallback).
func NewTable(shim *blockio.Shim, geo *volume.Geometry) *Table {
	return &Table{
		shim:         shim,
		geo:          geo,
		freeBitmap:   bitmap.New(int(geo.TotalClusters)),
		nextFreeHint: firstDataCluster,
	}
}

func (t *Table) bitIndex(c ClusterID) int {
	return int(c - firstDataCluster)
}

// lastValidCluster returns the highest legal data cluster number.
func (t *Table) lastValidCluster() ClusterID {
	return firstDataCluster + ClusterID(t.geo.TotalClusters) - 1
}

// IsValidCluster reports whether c addresses an allocatable data cluster.
func (t *Table) IsValidCluster(c ClusterID) bool {
	return c >= firstDataCluster && c <= t.lastValidCluster()
}

// IsEndOfChain reports whether c is an end-of-chain sentinel for this
// volume's variant.
func (t *Table) IsEndOfChain(c ClusterID) bool {
	switch t.geo.Variant {
	case volume.Fat12:
		return (c & 0x0FFF) >= 0x0FF8
	case volume.Fat16:
		return (c & 0xFFFF) >= 0xFFF8
	default:
		return (c & 0x0FFFFFFF) >= 0x0FFFFFF8
	}
}

// IsBadCluster reports whether c is the variant's "bad cluster" marker.
func (t *Table) IsBadCluster(c ClusterID) bool {
	switch t.geo.Variant {
	case volume.Fat12:
		return (c & 0x0FFF) == 0x0FF7
	case volume.Fat16:
		return (c & 0xFFFF) == 0xFFF7
	default:
		return (c & 0x0FFFFFFF) == 0x0FFFFFF7
	}
}

// EndOfChainValue returns the canonical end-of-chain sentinel to write when
// terminating a chain.
func (t *Table) EndOfChainValue() ClusterID {
	switch t.geo.Variant {
	case volume.Fat12:
		return 0x0FFF
	case volume.Fat16:
		return 0xFFFF
	default:
		return 0x0FFFFFFF
	}
}

// entryOffset returns the byte offset of cluster c's entry within a single
// FAT's region (relative to that FAT's first sector). For FAT12 this is the
// first of the two bytes that hold the 12-bit value.
func (t *Table) entryOffset(c ClusterID) int64 {
	switch t.geo.Variant {
	case volume.Fat12:
		return int64(c) + int64(c)/2
	case volume.Fat16:
		return int64(c) * 2
	default:
		return int64(c) * 4
	}
}

func (t *Table) fatBytesPerFAT() int64 {
	return int64(t.geo.SectorsPerFAT) * int64(t.geo.BytesPerSector)
}

func (t *Table) fatStartOffset(fatIndex uint) int64 {
	return int64(t.geo.FirstFATSector)*int64(t.geo.BytesPerSector) + int64(fatIndex)*t.fatBytesPerFAT()
}

// Get returns the value stored at cluster c's FAT entry (read from the first
// FAT only; mirrors are assumed identical per spec.md's invariant).
func (t *Table) Get(c ClusterID) (ClusterID, error) {
	offset := t.fatStartOffset(0) + t.entryOffset(c)

	switch t.geo.Variant {
	case volume.Fat12:
		buf := make([]byte, 2)
		if err := t.shim.ReadExact(offset, buf); err != nil {
			return 0, err
		}
		raw := binary.LittleEndian.Uint16(buf)
		if c%2 == 0 {
			return ClusterID(raw & 0x0FFF), nil
		}
		return ClusterID(raw >> 4), nil

	case volume.Fat16:
		buf := make([]byte, 2)
		if err := t.shim.ReadExact(offset, buf); err != nil {
			return 0, err
		}
		return ClusterID(binary.LittleEndian.Uint16(buf)), nil

	default:
		buf := make([]byte, 4)
		if err := t.shim.ReadExact(offset, buf); err != nil {
			return 0, err
		}
		return ClusterID(binary.LittleEndian.Uint32(buf) & 0x0FFFFFFF), nil
	}
}

// Set writes v into cluster c's FAT entry, mirrored across every configured
// FAT. On FAT32, the reserved upper 4 bits of the existing entry are
// preserved, as spec.md §3 requires. A write failure on one mirror does not
// stop the others from being attempted; every failure is collected and
// returned together, so a single bad mirror never leaves the rest stale.
func (t *Table) Set(c ClusterID, v ClusterID) error {
	var result *multierror.Error
	for fatIndex := uint(0); fatIndex < t.geo.NumFATs; fatIndex++ {
		if err := t.setOneMirror(fatIndex, c, v); err != nil {
			result = multierror.Append(result, err)
		}
	}

	t.updateFreeBitmap(c, v)
	return result.ErrorOrNil()
}

func (t *Table) setOneMirror(fatIndex uint, c ClusterID, v ClusterID) error {
	offset := t.fatStartOffset(fatIndex) + t.entryOffset(c)

	switch t.geo.Variant {
	case volume.Fat12:
		buf := make([]byte, 2)
		if err := t.shim.ReadExact(offset, buf); err != nil {
			return err
		}
		existing := binary.LittleEndian.Uint16(buf)
		var packed uint16
		if c%2 == 0 {
			packed = (existing & 0xF000) | (uint16(v) & 0x0FFF)
		} else {
			packed = (existing & 0x000F) | (uint16(v) << 4)
		}
		binary.LittleEndian.PutUint16(buf, packed)
		return t.shim.WriteAll(offset, buf)

	case volume.Fat16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v))
		return t.shim.WriteAll(offset, buf)

	default:
		buf := make([]byte, 4)
		if err := t.shim.ReadExact(offset, buf); err != nil {
			return err
		}
		existing := binary.LittleEndian.Uint32(buf)
		packed := (existing & 0xF0000000) | (uint32(v) & 0x0FFFFFFF)
		binary.LittleEndian.PutUint32(buf, packed)
		return t.shim.WriteAll(offset, buf)
	}
}

func (t *Table) updateFreeBitmap(c ClusterID, v ClusterID) {
	if !t.IsValidCluster(c) {
		return
	}
	wasFree := t.freeBitmap.Get(t.bitIndex(c))
	isFree := v == 0
	if wasFree == isFree {
		return
	}
	t.freeBitmap.Set(t.bitIndex(c), isFree)
	if isFree {
		t.freeCount++
	} else {
		t.freeCount--
	}
}

// EnsureScanned performs the one-time full-FAT scan that populates the
// free-cluster bitmap and count, if it hasn't already happened. FAT32 callers
// should first try to seed this from FSInfo; EnsureScanned itself always does
// a full scan.
func (t *Table) EnsureScanned() error {
	if t.scanned {
		return nil
	}

	t.freeCount = 0
	for c := firstDataCluster; c <= t.lastValidCluster(); c++ {
		v, err := t.Get(c)
		if err != nil {
			return err
		}
		free := v == 0
		t.freeBitmap.Set(t.bitIndex(c), free)
		if free {
			t.freeCount++
		}
	}
	t.scanned = true
	t.freeCountIsHint = false
	return nil
}

// FreeCount returns the number of free clusters known to the manager. If
// only a FAT32 FSInfo hint has been seeded, this is that hint; call
// EnsureScanned first for an authoritative count.
func (t *Table) FreeCount() uint {
	return t.freeCount
}

// FindFree performs a linear scan for a free cluster starting at hint,
// wrapping once around the data region, per spec.md §4.3.
func (t *Table) FindFree(hint ClusterID) (ClusterID, error) {
	if err := t.EnsureScanned(); err != nil {
		return 0, err
	}
	if hint < firstDataCluster || hint > t.lastValidCluster() {
		hint = firstDataCluster
	}

	for c := hint; c <= t.lastValidCluster(); c++ {
		if t.freeBitmap.Get(t.bitIndex(c)) {
			return c, nil
		}
	}
	for c := firstDataCluster; c < hint; c++ {
		if t.freeBitmap.Get(t.bitIndex(c)) {
			return c, nil
		}
	}
	return 0, errors.ErrNoSpaceOnDevice
}

// AllocateChain allocates length clusters, links them into a chain in
// allocation order, and returns the head. length == 0 returns the sentinel
// cluster 0 (an empty chain), matching spec.md's "Empty files have chain []".
func (t *Table) AllocateChain(length uint) (ClusterID, error) {
	if length == 0 {
		return 0, nil
	}

	clusters := make([]ClusterID, 0, length)
	hint := t.nextFreeHint

	for i := uint(0); i < length; i++ {
		c, err := t.FindFree(hint)
		if err != nil {
			for _, allocated := range clusters {
				_ = t.Set(allocated, 0)
			}
			return 0, err
		}
		if err := t.Set(c, t.EndOfChainValue()); err != nil {
			return 0, err
		}
		clusters = append(clusters, c)
		hint = c + 1
	}

	for i := 0; i < len(clusters)-1; i++ {
		if err := t.Set(clusters[i], clusters[i+1]); err != nil {
			return 0, err
		}
	}

	t.nextFreeHint = hint
	return clusters[0], nil
}

// ExtendChain allocates one new cluster and appends it to the chain beginning
// at head, returning the new cluster's ID.
func (t *Table) ExtendChain(head ClusterID) (ClusterID, error) {
	tail, err := t.chainTail(head)
	if err != nil {
		return 0, err
	}

	next, err := t.FindFree(t.nextFreeHint)
	if err != nil {
		return 0, err
	}
	if err := t.Set(next, t.EndOfChainValue()); err != nil {
		return 0, err
	}
	if err := t.Set(tail, next); err != nil {
		return 0, err
	}
	t.nextFreeHint = next + 1
	return next, nil
}

func (t *Table) chainTail(head ClusterID) (ClusterID, error) {
	current := head
	for i := uint(0); i < t.geo.TotalClusters+1; i++ {
		next, err := t.Get(current)
		if err != nil {
			return 0, err
		}
		if t.IsEndOfChain(next) {
			return current, nil
		}
		if !t.IsValidCluster(next) {
			return 0, errors.ErrFileSystemCorrupted.WithMessage("cluster chain references an invalid cluster")
		}
		current = next
	}
	return 0, errors.ErrFileSystemCorrupted.WithMessage("cluster chain cycle detected")
}

// FreeChain walks the chain from head, writing 0 to every entry. A chain
// longer than the total cluster count is treated as a cycle and reported as
// CorruptedFileSystem, per spec.md §4.3.
func (t *Table) FreeChain(head ClusterID) error {
	if head == 0 || t.IsEndOfChain(head) {
		return nil
	}

	current := head
	for i := uint(0); i < t.geo.TotalClusters+1; i++ {
		next, err := t.Get(current)
		if err != nil {
			return err
		}
		if err := t.Set(current, 0); err != nil {
			return err
		}
		if t.IsEndOfChain(next) {
			return nil
		}
		if !t.IsValidCluster(next) {
			return errors.ErrFileSystemCorrupted.WithMessage("cluster chain references an invalid cluster")
		}
		current = next
	}
	return errors.ErrFileSystemCorrupted.WithMessage("cluster chain cycle detected")
}

// ListChain returns every cluster in the chain starting at chainStart, in
// order. An empty/sentinel start returns an empty slice.
func (t *Table) ListChain(chainStart ClusterID) ([]ClusterID, error) {
	if chainStart == 0 || t.IsEndOfChain(chainStart) {
		return nil, nil
	}
	if !t.IsValidCluster(chainStart) {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("invalid cluster cannot start a chain")
	}

	chain := make([]ClusterID, 0, 8)
	current := chainStart
	for i := uint(0); i < t.geo.TotalClusters+1; i++ {
		chain = append(chain, current)
		next, err := t.Get(current)
		if err != nil {
			return nil, err
		}
		if t.IsEndOfChain(next) {
			return chain, nil
		}
		if !t.IsValidCluster(next) {
			return nil, errors.ErrFileSystemCorrupted.WithMessage("cluster chain references an invalid cluster")
		}
		current = next
	}
	return nil, errors.ErrFileSystemCorrupted.WithMessage("cluster chain cycle detected")
}
