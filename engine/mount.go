// Package engine implements the filesystem façade of spec.md §4.7: mount,
// unmount, root-directory access, and volume statistics, tying together the
// boot-sector parser, FAT manager, directory engine, and file handles.
// Grounded on dargueta-disko's file_systems/fat/driverbase.go, whose
// FATDriver plays the same coordinating role over its own fat subpackage.
package engine

import (
	"time"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/directory"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/fat"
	"github.com/gofatfs/fatfs/volume"
)

// OEMCodePageConverter translates an 8-bit OEM code-page byte to and from
// Unicode. The engine does not consult it: short names are uppercased with
// strings.ToUpper, and bytes at or above 0x80 are stored unchanged, whether
// or not a converter is set.
type OEMCodePageConverter interface {
	ToUnicode(b byte) rune
	FromUnicode(r rune) (byte, bool)
}

// MountOptions configures optional mount-time behavior, per spec.md §6.
type MountOptions struct {
	// UpdateAccessedDate rewrites a file's last-access date on every read,
	// at the cost of marking otherwise-clean handles dirty. Default false.
	UpdateAccessedDate bool

	// OEMCodePageConverter is carried in the options but not read by any
	// part of the engine; see the type's documentation.
	OEMCodePageConverter OEMCodePageConverter

	// TimeProvider supplies timestamps for created/modified entries. Left
	// nil, new entries get the zero time, matching spec.md's "a zero-clock
	// is acceptable" allowance.
	TimeProvider func() time.Time
}

// Stats is the summary spec.md §4.7's stats() operation returns, shaped
// after dargueta-disko's api.go FSStat rather than the bare 3-tuple the
// distilled spec names.
type Stats struct {
	// BlockSize is the size of a cluster, in bytes -- this engine's unit of
	// allocation, reported in the "block" slot FSStat expects.
	BlockSize uint
	// TotalBlocks is the total number of clusters in the data region.
	TotalBlocks uint
	// BlocksFree is the number of unallocated clusters.
	BlocksFree uint
	// MaxNameLength is the longest name a single entry can carry: 255 UCS-2
	// units, the LFN ceiling FAT imposes regardless of variant.
	MaxNameLength uint
	// Label is the volume label from the FAT32 extended boot sector. It is
	// empty on FAT12/16, whose boot-sector label field is not read.
	Label string
}

// Volume is a mounted FAT12/16/32 image. It exclusively owns the underlying
// store; directory and file handles borrow from it and must be closed
// before Close is called, per spec.md §5's ownership model.
type Volume struct {
	shim    *blockio.Shim
	geo     *volume.Geometry
	table   *fat.Table
	options MountOptions
}

// Mount reads the boot sector from store, classifies the variant, builds the
// FAT manager, and (on FAT32) seeds free-space accounting from FSInfo.
func Mount(store blockio.ByteStore, options MountOptions) (*Volume, error) {
	shim := blockio.New(store)

	sector0 := make([]byte, 512)
	if err := shim.ReadExact(0, sector0); err != nil {
		return nil, err
	}
	if sector0[510] != 0x55 || sector0[511] != 0xAA {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("missing 0x55AA boot sector signature")
	}

	geo, err := volume.ParseBPB(sector0)
	if err != nil {
		return nil, err
	}

	table := fat.NewTable(shim, geo)

	if geo.Variant == volume.Fat32 && geo.FSInfoSector != 0 {
		if info, err := fat.ReadFSInfo(shim, geo); err == nil {
			table.SeedFromFSInfo(info)
		}
	}

	return &Volume{shim: shim, geo: geo, table: table, options: options}, nil
}

// Geometry exposes the volume's parsed boot-sector geometry.
func (v *Volume) Geometry() *volume.Geometry {
	return v.geo
}

func (v *Volume) clock() directory.TimeSource {
	if v.options.TimeProvider == nil {
		return nil
	}
	return v.options.TimeProvider
}

// RootDir returns a handle onto the volume's root directory.
func (v *Volume) RootDir() *directory.Directory {
	return directory.OpenRoot(v.shim, v.geo, v.table, v.clock())
}

// Stat returns the volume's free-space summary. The first call performs a
// full FAT scan, whether or not FSInfo seeded a free count at mount.
func (v *Volume) Stat() (Stats, error) {
	if err := v.table.EnsureScanned(); err != nil {
		return Stats{}, err
	}
	return Stats{
		BlockSize:     v.geo.BytesPerCluster,
		TotalBlocks:   v.geo.TotalClusters,
		BlocksFree:    v.table.FreeCount(),
		MaxNameLength: maxLFNNameLength,
		Label:         v.geo.VolumeLabel,
	}, nil
}

// maxLFNNameLength is the longest long name, in UCS-2 units, that every FAT
// variant allows; it fits in 20 LFN slots of 13 units each.
const maxLFNNameLength = 255

// Close flushes the FAT manager's free-space summary (FSInfo on FAT32) back
// to disk. It does not flush any directory or file handles still open --
// those must be flushed or closed by the caller first, per spec.md §5.
func (v *Volume) Close() error {
	if v.geo.Variant != volume.Fat32 || v.geo.FSInfoSector == 0 {
		return nil
	}
	if err := v.table.EnsureScanned(); err != nil {
		return err
	}
	snapshot := v.table.Snapshot()
	return fat.WriteFSInfo(v.shim, v.geo, &snapshot)
}
