package directory

import (
	"strings"
	"time"
	"unicode/utf16"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/direntry"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/fat"
	"github.com/gofatfs/fatfs/volume"
	"github.com/hashicorp/go-multierror"
)

// TimeSource supplies the current time for newly created and modified
// entries. Mount options may install a fixed-clock implementation for
// reproducible images.
type TimeSource func() time.Time

// Directory is a handle onto one directory's contents -- either the
// FAT12/16 fixed root region or a cluster chain.
type Directory struct {
	region *region
	table  *fat.Table
	now    TimeSource
}

// Entry is one logical directory entry: its decoded metadata plus the slot
// range it occupies, needed by Remove and Rename to locate its on-disk
// bytes.
type Entry struct {
	Dirent    *direntry.Dirent
	startSlot uint
	shortSlot uint
}

// OpenRoot returns a handle onto the volume's root directory, dispatching
// on variant: a fixed region for FAT12/16, a regular chain rooted at
// geo.RootCluster for FAT32.
func OpenRoot(shim *blockio.Shim, geo *volume.Geometry, table *fat.Table, now TimeSource) *Directory {
	if geo.Variant == volume.Fat32 {
		return &Directory{region: newChainRegion(shim, geo, table, fat.ClusterID(geo.RootCluster)), table: table, now: now}
	}
	return &Directory{region: newFixedRootRegion(shim, geo), table: table, now: now}
}

// OpenSub returns a handle onto a subdirectory's cluster chain.
func OpenSub(shim *blockio.Shim, geo *volume.Geometry, table *fat.Table, firstCluster uint32, now TimeSource) *Directory {
	return &Directory{region: newChainRegion(shim, geo, table, fat.ClusterID(firstCluster)), table: table, now: now}
}

// FirstCluster returns the cluster this directory's contents begin at, or 0
// for the FAT12/16 fixed root.
func (d *Directory) FirstCluster() uint32 {
	return d.region.firstClusterValue()
}

// List enumerates every live logical entry in the directory, in on-disk
// order. Orphan LFN runs -- checksum mismatch, out-of-order sequence,
// missing terminator flag -- are silently skipped, per spec.md §4.5.
func (d *Directory) List() ([]Entry, error) {
	count, err := d.region.slotCount()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var pendingLFN [][]byte
	pendingStart := uint(0)

	for i := uint(0); i < count; i++ {
		raw, err := d.region.readSlot(i)
		if err != nil {
			return nil, err
		}

		switch raw[0] {
		case 0x00:
			return entries, nil
		case 0xE5:
			pendingLFN = nil
			continue
		}

		if raw[11] == direntry.AttrLongName {
			if len(pendingLFN) == 0 {
				pendingStart = i
			}
			pendingLFN = append(pendingLFN, raw)
			continue
		}

		rawShort := direntry.DecodeShort(raw)
		if rawShort.AttributeFlags&direntry.AttrVolumeID != 0 {
			pendingLFN = nil
			continue
		}

		var longName string
		if len(pendingLFN) > 0 {
			checksum := direntry.ShortNameChecksum(packedNameFromRaw(raw))
			name, err := direntry.ReassembleLFN(pendingLFN, checksum)
			if err == nil {
				longName = name
			}
			// An orphan run (bad checksum/order) is silently dropped; the
			// short entry still stands on its own.
		}
		start := i
		if len(pendingLFN) > 0 {
			start = pendingStart
		}
		pendingLFN = nil

		dirent, err := direntry.DirentFromRaw(rawShort, longName)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Dirent: dirent, startSlot: start, shortSlot: i})
	}

	return entries, nil
}

// ReclaimOrphanLFNs scans the directory for LFN slot runs that List already
// treats as orphaned -- bad checksum, out-of-order sequence, no short entry
// ever following them -- and marks them deleted. List silently skips these
// runs when enumerating, but left untouched they're neither 0x00 nor 0xE5,
// so allocateSlots sees them as permanently occupied and the space they hold
// is never reused. Reclaiming one orphan run is independent of the others;
// a failure on one doesn't stop the pass from reclaiming the rest, and every
// failure encountered is returned together.
func (d *Directory) ReclaimOrphanLFNs() error {
	count, err := d.region.slotCount()
	if err != nil {
		return err
	}

	var result *multierror.Error
	var pendingSlots []uint
	var pendingRaws [][]byte

	deletePending := func() {
		for _, slot := range pendingSlots {
			raw, err := d.region.readSlot(slot)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			raw[0] = 0xE5
			if err := d.region.writeSlot(slot, raw); err != nil {
				result = multierror.Append(result, err)
			}
		}
		pendingSlots = nil
		pendingRaws = nil
	}

	for i := uint(0); i < count; i++ {
		raw, err := d.region.readSlot(i)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		switch raw[0] {
		case 0x00:
			deletePending()
			return result.ErrorOrNil()
		case 0xE5:
			pendingSlots, pendingRaws = nil, nil
			continue
		}

		if raw[11] == direntry.AttrLongName {
			pendingSlots = append(pendingSlots, i)
			pendingRaws = append(pendingRaws, raw)
			continue
		}

		rawShort := direntry.DecodeShort(raw)
		if rawShort.AttributeFlags&direntry.AttrVolumeID != 0 {
			pendingSlots, pendingRaws = nil, nil
			continue
		}

		if len(pendingRaws) > 0 {
			checksum := direntry.ShortNameChecksum(packedNameFromRaw(raw))
			if _, err := direntry.ReassembleLFN(pendingRaws, checksum); err != nil {
				deletePending()
			} else {
				pendingSlots, pendingRaws = nil, nil
			}
		}
	}

	deletePending()
	return result.ErrorOrNil()
}

func packedNameFromRaw(raw []byte) [11]byte {
	var packed [11]byte
	copy(packed[:], raw[0:11])
	return packed
}

// Lookup finds a live entry by name, case-insensitively, matching against
// both its short and long forms.
func (d *Directory) Lookup(name string) (*Entry, error) {
	entries, err := d.List()
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(name)
	for i := range entries {
		e := &entries[i]
		if strings.ToUpper(e.Dirent.ShortName) == upper {
			return e, nil
		}
		if e.Dirent.LongName != "" && strings.ToUpper(e.Dirent.LongName) == upper {
			return e, nil
		}
	}
	return nil, errors.ErrNotFound
}

// Create adds a new entry named name with the given attributes and returns
// its Entry. The caller sets isDir via attrs to request a subdirectory;
// Create does not itself populate `.`/`..` -- CreateSubdirectory does.
func (d *Directory) Create(name string, attrs uint8) (*Entry, error) {
	now := d.clock()
	return d.insert(name, attrs, 0, 0, now, now, now)
}

// CreateSubdirectory creates a new subdirectory named name: allocates its
// first cluster, writes its directory entry, and populates the `.` and `..`
// entries inside it.
func (d *Directory) CreateSubdirectory(name string) (*Entry, *Directory, error) {
	firstCluster, err := d.table.AllocateChain(1)
	if err != nil {
		return nil, nil, err
	}

	now := d.clock()
	entry, err := d.insert(name, direntry.AttrDirectory, uint32(firstCluster), 0, now, now, now)
	if err != nil {
		_ = d.table.FreeChain(firstCluster)
		return nil, nil, err
	}

	shim, geo := d.region.shim, d.region.geo
	empty := make([]byte, geo.BytesPerCluster)
	if err := shim.WriteAll(geo.ClusterToOffset(uint32(firstCluster)), empty); err != nil {
		return nil, nil, err
	}
	if err := InitializeSubdirectory(shim, geo, d.table, uint32(firstCluster), d.FirstCluster(), d.now); err != nil {
		return nil, nil, err
	}

	return entry, OpenSub(shim, geo, d.table, uint32(firstCluster), d.now), nil
}

// insert adds a new logical entry named name with the given attributes,
// first cluster, size, and timestamps. It's shared by Create (zero-valued
// fresh entries) and Rename (preserving the moved entry's existing data).
func (d *Directory) insert(name string, attrs uint8, firstCluster, size uint32, created, modified, accessed time.Time) (*Entry, error) {
	if _, err := d.Lookup(name); err == nil {
		return nil, errors.ErrExists
	}

	longName, shortPacked, needsLFN, err := d.resolveNames(name)
	if err != nil {
		return nil, err
	}

	slotsNeeded := uint(1)
	if needsLFN {
		slotsNeeded += uint((len(utf16.Encode([]rune(longName))) + 12) / 13)
	}

	startSlot, err := d.allocateSlots(slotsNeeded)
	if err != nil {
		return nil, err
	}

	dirent := &direntry.Dirent{
		ShortName:      packedToDisplayName(shortPacked),
		AttributeFlags: attrs,
		FirstCluster:   firstCluster,
		SizeBytes:      size,
		CreatedAt:      created,
		LastAccessedAt: accessed,
		LastModifiedAt: modified,
	}

	if err := d.writeEntry(startSlot, shortPacked, longName, dirent); err != nil {
		return nil, err
	}

	return &Entry{Dirent: dirent, startSlot: startSlot, shortSlot: startSlot + slotsNeeded - 1}, nil
}

func (d *Directory) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Time{}
}

// resolveNames decides whether name needs an LFN extension and derives the
// short alias if so.
func (d *Directory) resolveNames(name string) (longName string, shortPacked [11]byte, needsLFN bool, err error) {
	if direntry.IsValidLiteralShortName(name) {
		stem, ext := direntry.SplitStemExtension(name)
		packed, perr := direntry.PackShortName(stem, ext)
		if perr != nil {
			return "", [11]byte{}, false, perr
		}
		return "", packed, false, nil
	}

	validated, verr := direntry.ValidateLongName(name)
	if verr != nil {
		return "", [11]byte{}, false, verr
	}

	existing, lerr := d.existingShortNames()
	if lerr != nil {
		return "", [11]byte{}, false, lerr
	}

	packed, derr := direntry.DeriveShortName(validated, existing)
	if derr != nil {
		return "", [11]byte{}, false, derr
	}
	return validated, packed, true, nil
}

func (d *Directory) existingShortNames() ([]string, error) {
	entries, err := d.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Dirent.ShortName
	}
	return names, nil
}

func packedToDisplayName(packed [11]byte) string {
	name := strings.TrimRight(string(packed[0:8]), " ")
	ext := strings.TrimRight(string(packed[8:11]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// allocateSlots finds (or makes room for) n contiguous free slots and
// returns the index of the first.
func (d *Directory) allocateSlots(n uint) (uint, error) {
	for {
		count, err := d.region.slotCount()
		if err != nil {
			return 0, err
		}

		run := uint(0)
		for i := uint(0); i < count; i++ {
			raw, err := d.region.readSlot(i)
			if err != nil {
				return 0, err
			}
			if raw[0] == 0x00 || raw[0] == 0xE5 {
				run++
				if run == n {
					return i - n + 1, nil
				}
				continue
			}
			run = 0
		}

		if err := d.region.grow(); err != nil {
			return 0, err
		}
	}
}

func (d *Directory) writeEntry(startSlot uint, shortPacked [11]byte, longName string, dirent *direntry.Dirent) error {
	raw := direntry.RawFromDirent(dirent, shortPacked)
	checksum := direntry.ShortNameChecksum(shortPacked)

	slot := startSlot
	if longName != "" {
		lfnSlots := direntry.EncodeLFNSlots(longName, checksum)
		for _, s := range lfnSlots {
			if err := d.region.writeSlot(slot, s); err != nil {
				return err
			}
			slot++
		}
	}

	return d.region.writeSlot(slot, direntry.EncodeShort(raw))
}

// rewriteDotDot updates this directory's `..` entry, always slot 1 per the
// layout InitializeSubdirectory writes, to point at newParentCluster. Used
// by Rename when a directory moves to a different parent.
func (d *Directory) rewriteDotDot(newParentCluster uint32) error {
	raw, err := d.region.readSlot(1)
	if err != nil {
		return err
	}

	decoded := direntry.DecodeShort(raw)
	decoded.FirstClusterHigh = uint16(newParentCluster >> 16)
	decoded.FirstClusterLow = uint16(newParentCluster & 0xFFFF)

	return d.region.writeSlot(1, direntry.EncodeShort(decoded))
}

// Remove marks every slot backing entry as deleted and frees its cluster
// chain. For directories, callers must check emptiness first (see
// IsEmptySubdirectory); Remove itself does not enforce it, since the root
// directory and non-directory entries have no such constraint.
func (d *Directory) Remove(entry *Entry) error {
	for i := entry.startSlot; i <= entry.shortSlot; i++ {
		raw, err := d.region.readSlot(i)
		if err != nil {
			return err
		}
		raw[0] = 0xE5
		if err := d.region.writeSlot(i, raw); err != nil {
			return err
		}
	}

	if entry.Dirent.FirstCluster != 0 {
		return d.table.FreeChain(fat.ClusterID(entry.Dirent.FirstCluster))
	}
	return nil
}

// removeSlotsOnly marks entry's slots deleted without freeing its cluster
// chain, used by Rename to detach an entry from its old location while
// preserving the data it points to.
func (d *Directory) removeSlotsOnly(entry *Entry) error {
	for i := entry.startSlot; i <= entry.shortSlot; i++ {
		raw, err := d.region.readSlot(i)
		if err != nil {
			return err
		}
		raw[0] = 0xE5
		if err := d.region.writeSlot(i, raw); err != nil {
			return err
		}
	}
	return nil
}

// IsEmptySubdirectory reports whether a directory located at firstCluster
// contains nothing but `.` and `..`.
func (d *Directory) IsEmptySubdirectory(shim *blockio.Shim, geo *volume.Geometry, firstCluster uint32) (bool, error) {
	sub := OpenSub(shim, geo, d.table, firstCluster, d.now)
	entries, err := sub.List()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Dirent.ShortName != "." && e.Dirent.ShortName != ".." {
			return false, nil
		}
	}
	return true, nil
}

// UpdateEntry rewrites an existing entry's short slot in place (size,
// first-cluster, timestamps), used by the file layer's flush path. The
// entry's name and LFN slots are untouched.
func (d *Directory) UpdateEntry(entry *Entry, dirent *direntry.Dirent) error {
	raw, err := d.region.readSlot(entry.shortSlot)
	if err != nil {
		return err
	}
	packed := packedNameFromRaw(raw)
	newRaw := direntry.RawFromDirent(dirent, packed)
	return d.region.writeSlot(entry.shortSlot, direntry.EncodeShort(newRaw))
}

// packDotEntry packs the literal "." or ".." pseudo-names, which are the
// only short names permitted to consist entirely of dots -- PackShortName's
// ordinary validation rejects '.' as a disallowed byte.
func packDotEntry(dots string) [11]byte {
	var packed [11]byte
	for i := range packed {
		packed[i] = ' '
	}
	copy(packed[:8], dots)
	return packed
}

// InitializeSubdirectory writes the `.` and `..` entries expected at the
// start of every non-root directory's cluster chain.
func InitializeSubdirectory(shim *blockio.Shim, geo *volume.Geometry, table *fat.Table, firstCluster, parentCluster uint32, now TimeSource) error {
	sub := OpenSub(shim, geo, table, firstCluster, now)

	ts := time.Time{}
	if now != nil {
		ts = now()
	}

	dot := &direntry.Dirent{
		ShortName:      ".",
		AttributeFlags: direntry.AttrDirectory,
		FirstCluster:   firstCluster,
		CreatedAt:      ts,
		LastModifiedAt: ts,
		LastAccessedAt: ts,
	}
	dotdot := &direntry.Dirent{
		ShortName:      "..",
		AttributeFlags: direntry.AttrDirectory,
		FirstCluster:   parentCluster,
		CreatedAt:      ts,
		LastModifiedAt: ts,
		LastAccessedAt: ts,
	}

	dotPacked := packDotEntry(".")
	dotdotPacked := packDotEntry("..")

	if err := sub.writeEntry(0, dotPacked, "", dot); err != nil {
		return err
	}
	return sub.writeEntry(1, dotdotPacked, "", dotdot)
}
