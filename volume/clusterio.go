package volume

// ClusterToOffset translates a data cluster number into its absolute byte
// offset on the underlying store. Grounded on drivers/fat/common.go's
// cluster-to-sector arithmetic, generalized to bytes directly since every
// caller immediately multiplies by BytesPerSector anyway.
func (g *Geometry) ClusterToOffset(cluster uint32) int64 {
	firstSectorOfCluster := g.FirstDataSector + (uint(cluster)-2)*g.SectorsPerCluster
	return int64(firstSectorOfCluster) * int64(g.BytesPerSector)
}

// FixedRootDirOffset returns the byte offset of the start of the fixed-size
// root directory region. Valid only for FAT12/16; FAT32 roots live in the
// regular cluster chain starting at RootCluster.
func (g *Geometry) FixedRootDirOffset() int64 {
	return int64(g.FirstRootDirSector) * int64(g.BytesPerSector)
}

// EntriesPerCluster returns how many 32-byte directory slots fit in one
// cluster.
func (g *Geometry) EntriesPerCluster() uint {
	return g.BytesPerCluster / 32
}

// FixedRootDirEntryCapacity returns how many 32-byte slots the fixed root
// region holds. Zero on FAT32.
func (g *Geometry) FixedRootDirEntryCapacity() uint {
	return g.RootDirSectors * g.BytesPerSector / 32
}
