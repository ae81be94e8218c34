package fat_test

import (
	"testing"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/bytesource"
	"github.com/gofatfs/fatfs/fat"
	"github.com/gofatfs/fatfs/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildVolume lays out a blank image with numFATs FATs of the given variant
// and returns the shim and geometry ready for a fat.Table to mount against.
func buildVolume(t *testing.T, variant volume.Variant, totalClusters uint, numFATs uint) (*blockio.Shim, *volume.Geometry) {
	t.Helper()

	const bytesPerSector = 512
	const sectorsPerCluster = 1

	var bytesPerFATEntry uint
	switch variant {
	case volume.Fat12:
		bytesPerFATEntry = 2 // rounds up; packed storage computed directly below
	case volume.Fat16:
		bytesPerFATEntry = 2
	default:
		bytesPerFATEntry = 4
	}

	var fatBytes uint
	if variant == volume.Fat12 {
		fatBytes = (totalClusters+2)*3/2 + 2
	} else {
		fatBytes = (totalClusters + 2) * bytesPerFATEntry
	}
	sectorsPerFAT := (fatBytes + bytesPerSector - 1) / bytesPerSector

	reservedSectors := uint(1)
	firstFATSector := reservedSectors
	firstDataSector := firstFATSector + numFATs*sectorsPerFAT
	totalSectors := firstDataSector + totalClusters*sectorsPerCluster

	data := make([]byte, totalSectors*bytesPerSector)
	store := bytesource.FromBytes(data)
	shim := blockio.New(store)

	geo := &volume.Geometry{
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		NumFATs:           numFATs,
		SectorsPerFAT:     sectorsPerFAT,
		Variant:           variant,
		FirstFATSector:    firstFATSector,
		FirstDataSector:   firstDataSector,
		BytesPerCluster:   bytesPerSector * sectorsPerCluster,
		TotalClusters:     totalClusters,
		LastDataCluster:   uint32(totalClusters) + 1,
	}

	return shim, geo
}

func TestTableGetSetFAT12(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat12, 10, 1)
	table := fat.NewTable(shim, geo)

	require.NoError(t, table.Set(2, 3))
	require.NoError(t, table.Set(3, table.EndOfChainValue()))

	v, err := table.Get(2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	v, err = table.Get(3)
	require.NoError(t, err)
	assert.True(t, table.IsEndOfChain(v))
}

func TestTableGetSetFAT12OddEvenPacking(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat12, 10, 1)
	table := fat.NewTable(shim, geo)

	// Adjacent odd/even entries share a byte; writing one must not disturb
	// the other.
	require.NoError(t, table.Set(4, 0x0ABC))
	require.NoError(t, table.Set(5, 0x0DEF))

	v4, err := table.Get(4)
	require.NoError(t, err)
	assert.EqualValues(t, 0x0ABC, v4)

	v5, err := table.Get(5)
	require.NoError(t, err)
	assert.EqualValues(t, 0x0DEF, v5)
}

func TestTableGetSetFAT16(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 5000, 1)
	table := fat.NewTable(shim, geo)

	require.NoError(t, table.Set(10, 11))
	v, err := table.Get(10)
	require.NoError(t, err)
	assert.EqualValues(t, 11, v)
}

func TestTableGetSetFAT32PreservesReservedBits(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat32, 70000, 1)
	table := fat.NewTable(shim, geo)

	// Simulate a reserved high nibble already present on disk.
	offset := int64(geo.FirstFATSector)*int64(geo.BytesPerSector) + int64(100)*4
	raw := []byte{0, 0, 0, 0xF0}
	require.NoError(t, shim.WriteAll(offset, raw))

	require.NoError(t, table.Set(100, 102))

	v, err := table.Get(100)
	require.NoError(t, err)
	assert.EqualValues(t, 102, v)

	readBack := make([]byte, 4)
	require.NoError(t, shim.ReadExact(offset, readBack))
	assert.EqualValues(t, 0xF0, readBack[3]&0xF0)
}

func TestTableMirrorsAcrossFATs(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 100, 2)
	table := fat.NewTable(shim, geo)

	require.NoError(t, table.Set(5, 6))

	secondFATOffset := int64(geo.FirstFATSector)*int64(geo.BytesPerSector) + int64(geo.SectorsPerFAT)*int64(geo.BytesPerSector)
	buf := make([]byte, 2)
	require.NoError(t, shim.ReadExact(secondFATOffset+10, buf))
	assert.EqualValues(t, 6, buf[0])
}

// failAtOffsetStore fails every WriteAt landing at failOffset and succeeds
// everywhere else, so a single bad FAT mirror can be simulated without
// touching the others.
type failAtOffsetStore struct {
	data       []byte
	failOffset int64
}

func (s *failAtOffsetStore) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, assert.AnError
	}
	return n, nil
}

func (s *failAtOffsetStore) WriteAt(p []byte, off int64) (int, error) {
	if off == s.failOffset {
		return 0, assert.AnError
	}
	return copy(s.data[off:], p), nil
}

func TestTableSetAggregatesErrorsAcrossMirrorsWithoutStoppingEarly(t *testing.T) {
	_, geo := buildVolume(t, volume.Fat16, 100, 2)

	secondFATOffset := int64(geo.FirstFATSector)*int64(geo.BytesPerSector) + int64(geo.SectorsPerFAT)*int64(geo.BytesPerSector)
	totalSize := int64(geo.FirstDataSector+geo.TotalClusters*geo.SectorsPerCluster) * int64(geo.BytesPerSector)
	store := &failAtOffsetStore{data: make([]byte, totalSize), failOffset: secondFATOffset + 10}
	faultyShim := blockio.New(store)
	table := fat.NewTable(faultyShim, geo)

	err := table.Set(5, 6)
	require.Error(t, err)

	firstFATOffset := int64(geo.FirstFATSector) * int64(geo.BytesPerSector)
	buf := make([]byte, 2)
	require.NoError(t, faultyShim.ReadExact(firstFATOffset+10, buf))
	assert.EqualValues(t, 6, buf[0])
}

func TestAllocateChainLinksInOrder(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 100, 1)
	table := fat.NewTable(shim, geo)

	head, err := table.AllocateChain(4)
	require.NoError(t, err)

	chain, err := table.ListChain(head)
	require.NoError(t, err)
	assert.Len(t, chain, 4)
}

func TestAllocateChainEmptyReturnsZero(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 100, 1)
	table := fat.NewTable(shim, geo)

	head, err := table.AllocateChain(0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, head)
}

func TestAllocateChainOutOfSpace(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 4, 1)
	table := fat.NewTable(shim, geo)

	_, err := table.AllocateChain(5)
	assert.Error(t, err)
}

func TestExtendChainAppendsCluster(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 100, 1)
	table := fat.NewTable(shim, geo)

	head, err := table.AllocateChain(2)
	require.NoError(t, err)

	_, err = table.ExtendChain(head)
	require.NoError(t, err)

	chain, err := table.ListChain(head)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestFreeChainReleasesClusters(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 100, 1)
	table := fat.NewTable(shim, geo)

	head, err := table.AllocateChain(3)
	require.NoError(t, err)
	require.NoError(t, table.EnsureScanned())
	before := table.FreeCount()

	require.NoError(t, table.FreeChain(head))
	assert.Equal(t, before+3, table.FreeCount())

	v, err := table.Get(head)
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
}

func TestFreeChainDetectsCycle(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 10, 1)
	table := fat.NewTable(shim, geo)

	require.NoError(t, table.Set(2, 3))
	require.NoError(t, table.Set(3, 2))

	err := table.FreeChain(2)
	assert.Error(t, err)
}

func TestFindFreeWrapsAround(t *testing.T) {
	shim, geo := buildVolume(t, volume.Fat16, 5, 1)
	table := fat.NewTable(shim, geo)
	require.NoError(t, table.EnsureScanned())

	for c := fat.ClusterID(2); c < 7; c++ {
		require.NoError(t, table.Set(c, table.EndOfChainValue()))
	}
	require.NoError(t, table.Set(4, 0))

	found, err := table.FindFree(5)
	require.NoError(t, err)
	assert.EqualValues(t, 4, found)
}
