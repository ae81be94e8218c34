// Package directory implements the FAT directory engine: enumeration,
// lookup, create, remove, rename, and slot allocation over either the
// fixed-size root region (FAT12/16) or a regular cluster chain. Grounded on
// dargueta-disko's file_systems/fat/driverbase.go directory-walking logic,
// generalized across both storage shapes and given LFN support.
package directory

import (
	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/errors"
	"github.com/gofatfs/fatfs/fat"
	"github.com/gofatfs/fatfs/volume"
)

// region is the slot-addressable storage backing one directory: either the
// FAT12/16 fixed root area or a cluster chain. It hides the storage shape
// from the rest of the directory engine.
type region struct {
	shim  *blockio.Shim
	geo   *volume.Geometry
	table *fat.Table

	fixedRoot bool
	chain     []fat.ClusterID // populated lazily; empty chain for an empty dir
	first     fat.ClusterID
}

// newFixedRootRegion constructs the slot view over a FAT12/16 root
// directory's fixed sector range.
func newFixedRootRegion(shim *blockio.Shim, geo *volume.Geometry) *region {
	return &region{shim: shim, geo: geo, fixedRoot: true}
}

// newChainRegion constructs the slot view over a directory's cluster chain
// (FAT32 root, or any subdirectory on any variant).
func newChainRegion(shim *blockio.Shim, geo *volume.Geometry, table *fat.Table, first fat.ClusterID) *region {
	return &region{shim: shim, geo: geo, table: table, first: first}
}

func (r *region) ensureChainLoaded() error {
	if r.fixedRoot || r.chain != nil {
		return nil
	}
	chain, err := r.table.ListChain(r.first)
	if err != nil {
		return err
	}
	if chain == nil {
		chain = []fat.ClusterID{}
	}
	r.chain = chain
	return nil
}

// slotCount returns how many 32-byte slots are currently addressable.
func (r *region) slotCount() (uint, error) {
	if r.fixedRoot {
		return r.geo.FixedRootDirEntryCapacity(), nil
	}
	if err := r.ensureChainLoaded(); err != nil {
		return 0, err
	}
	return uint(len(r.chain)) * r.geo.EntriesPerCluster(), nil
}

func (r *region) slotOffset(index uint) (int64, error) {
	if r.fixedRoot {
		return r.geo.FixedRootDirOffset() + int64(index)*32, nil
	}
	if err := r.ensureChainLoaded(); err != nil {
		return 0, err
	}
	entriesPerCluster := r.geo.EntriesPerCluster()
	clusterIdx := index / entriesPerCluster
	if clusterIdx >= uint(len(r.chain)) {
		return 0, errors.ErrArgumentOutOfRange
	}
	offsetInCluster := (index % entriesPerCluster) * 32
	return r.geo.ClusterToOffset(uint32(r.chain[clusterIdx])) + int64(offsetInCluster), nil
}

func (r *region) readSlot(index uint) ([]byte, error) {
	offset, err := r.slotOffset(index)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 32)
	if err := r.shim.ReadExact(offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *region) writeSlot(index uint, data []byte) error {
	offset, err := r.slotOffset(index)
	if err != nil {
		return err
	}
	return r.shim.WriteAll(offset, data)
}

// grow extends the region by one cluster's worth of slots. The fixed root
// region can never grow; growing it fails with ErrNoSpaceOnDevice, matching
// spec.md §4.5's "allocation fails with NotEnoughSpace when full" rule for
// FAT12/16 roots.
func (r *region) grow() error {
	if r.fixedRoot {
		return errors.ErrNoSpaceOnDevice
	}
	if err := r.ensureChainLoaded(); err != nil {
		return err
	}

	var newCluster fat.ClusterID
	var err error
	if len(r.chain) == 0 {
		newCluster, err = r.table.AllocateChain(1)
	} else {
		newCluster, err = r.table.ExtendChain(r.chain[len(r.chain)-1])
	}
	if err != nil {
		return err
	}
	if len(r.chain) == 0 {
		r.first = newCluster
	}
	r.chain = append(r.chain, newCluster)

	empty := make([]byte, r.geo.BytesPerCluster)
	return r.shim.WriteAll(r.geo.ClusterToOffset(uint32(newCluster)), empty)
}

// firstClusterValue returns the cluster a newly created subdirectory should
// record as its own first-cluster link. Zero for the fixed root, which has
// no cluster identity of its own.
func (r *region) firstClusterValue() uint32 {
	if r.fixedRoot {
		return 0
	}
	return uint32(r.first)
}
