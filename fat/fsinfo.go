package fat

import (
	"encoding/binary"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/volume"
)

const (
	fsInfoLeadSignature  = 0x41615252
	fsInfoStrucSignature = 0x61417272
	fsInfoTrailSignature = 0xAA550000

	fsInfoFreeCountOffset = 488
	fsInfoNextFreeOffset  = 492
	fsInfoUnknownCount    = 0xFFFFFFFF
)

// FSInfo mirrors the advisory free-cluster count and allocation hint FAT32
// stores outside the FAT itself. It's a hint only: spec.md requires treating
// 0xFFFFFFFF, or a value that disagrees with reality, as "unknown" and
// falling back to a full FAT scan.
type FSInfo struct {
	FreeClusterCount uint32
	NextFreeCluster  uint32
}

// ReadFSInfo loads the FSInfo sector for a FAT32 volume. Callers must check
// geo.Variant == volume.Fat32 and geo.FSInfoSector != 0 before calling.
func ReadFSInfo(shim *blockio.Shim, geo *volume.Geometry) (*FSInfo, error) {
	offset := int64(geo.FSInfoSector) * int64(geo.BytesPerSector)
	buf := make([]byte, geo.BytesPerSector)
	if err := shim.ReadExact(offset, buf); err != nil {
		return nil, err
	}

	lead := binary.LittleEndian.Uint32(buf[0:4])
	struc := binary.LittleEndian.Uint32(buf[484:488])
	trail := binary.LittleEndian.Uint32(buf[508:512])
	if lead != fsInfoLeadSignature || struc != fsInfoStrucSignature || trail != fsInfoTrailSignature {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("FSInfo sector signatures do not match")
	}

	return &FSInfo{
		FreeClusterCount: binary.LittleEndian.Uint32(buf[fsInfoFreeCountOffset : fsInfoFreeCountOffset+4]),
		NextFreeCluster:  binary.LittleEndian.Uint32(buf[fsInfoNextFreeOffset : fsInfoNextFreeOffset+4]),
	}, nil
}

// WriteFSInfo updates only the two advisory fields of the FSInfo sector,
// leaving the signatures and reserved regions untouched.
func WriteFSInfo(shim *blockio.Shim, geo *volume.Geometry, info *FSInfo) error {
	offset := int64(geo.FSInfoSector) * int64(geo.BytesPerSector)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, info.FreeClusterCount)
	if err := shim.WriteAll(offset+fsInfoFreeCountOffset, buf); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(buf, info.NextFreeCluster)
	return shim.WriteAll(offset+fsInfoNextFreeOffset, buf)
}

// SeedFromFSInfo primes the manager's allocation hint from a FAT32 FSInfo
// value, provided it looks plausible. It does not skip EnsureScanned's full
// FAT walk: FSInfo records only a count and a search hint, not which
// clusters are free, and the bitmap that FindFree relies on can only be
// built by scanning every entry. Callers that want to avoid that scan
// entirely should trust FreeClusterCount for Stats() and defer the scan
// until an allocation is actually attempted.
func (t *Table) SeedFromFSInfo(info *FSInfo) {
	if info.NextFreeCluster != fsInfoUnknownCount && t.IsValidCluster(ClusterID(info.NextFreeCluster)) {
		t.nextFreeHint = ClusterID(info.NextFreeCluster)
	}
	if info.FreeClusterCount != fsInfoUnknownCount && uint(info.FreeClusterCount) <= t.geo.TotalClusters {
		t.freeCount = uint(info.FreeClusterCount)
		t.freeCountIsHint = true
	}
}

// Snapshot returns the current free-cluster count and allocation hint in the
// shape FSInfo stores them, for persisting back on unmount.
func (t *Table) Snapshot() FSInfo {
	return FSInfo{
		FreeClusterCount: uint32(t.freeCount),
		NextFreeCluster:  uint32(t.nextFreeHint),
	}
}
