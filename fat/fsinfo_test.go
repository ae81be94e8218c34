package fat_test

import (
	"encoding/binary"
	"testing"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/bytesource"
	"github.com/gofatfs/fatfs/fat"
	"github.com/gofatfs/fatfs/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFSInfoSector(t *testing.T, freeCount, nextFree uint32) (*blockio.Shim, *volume.Geometry) {
	t.Helper()

	data := make([]byte, 1024)
	buf := data[512:1024]
	binary.LittleEndian.PutUint32(buf[0:4], 0x41615252)
	binary.LittleEndian.PutUint32(buf[484:488], 0x61417272)
	binary.LittleEndian.PutUint32(buf[488:492], freeCount)
	binary.LittleEndian.PutUint32(buf[492:496], nextFree)
	binary.LittleEndian.PutUint32(buf[508:512], 0xAA550000)

	store := bytesource.FromBytes(data)
	shim := blockio.New(store)
	geo := &volume.Geometry{
		BytesPerSector: 512,
		FSInfoSector:   1,
		Variant:        volume.Fat32,
		TotalClusters:  1000,
	}
	return shim, geo
}

func TestReadFSInfoRoundTrip(t *testing.T) {
	shim, geo := buildFSInfoSector(t, 900, 50)

	info, err := fat.ReadFSInfo(shim, geo)
	require.NoError(t, err)
	assert.EqualValues(t, 900, info.FreeClusterCount)
	assert.EqualValues(t, 50, info.NextFreeCluster)
}

func TestReadFSInfoRejectsBadSignature(t *testing.T) {
	shim, geo := buildFSInfoSector(t, 900, 50)

	// Corrupt the lead signature.
	require.NoError(t, shim.WriteAll(int64(geo.FSInfoSector)*int64(geo.BytesPerSector), []byte{0, 0, 0, 0}))

	_, err := fat.ReadFSInfo(shim, geo)
	assert.Error(t, err)
}

func TestWriteFSInfoUpdatesOnlyAdvisoryFields(t *testing.T) {
	shim, geo := buildFSInfoSector(t, 900, 50)

	require.NoError(t, fat.WriteFSInfo(shim, geo, &fat.FSInfo{FreeClusterCount: 42, NextFreeCluster: 7}))

	info, err := fat.ReadFSInfo(shim, geo)
	require.NoError(t, err)
	assert.EqualValues(t, 42, info.FreeClusterCount)
	assert.EqualValues(t, 7, info.NextFreeCluster)
}

func TestSeedFromFSInfoSetsHintAndCount(t *testing.T) {
	shim, geo := buildFSInfoSector(t, 900, 50)
	table := fat.NewTable(shim, geo)

	info, err := fat.ReadFSInfo(shim, geo)
	require.NoError(t, err)
	table.SeedFromFSInfo(info)

	assert.EqualValues(t, 900, table.FreeCount())
}

func TestSeedFromFSInfoIgnoresUnknownSentinel(t *testing.T) {
	shim, geo := buildFSInfoSector(t, 0xFFFFFFFF, 0xFFFFFFFF)
	table := fat.NewTable(shim, geo)

	info, err := fat.ReadFSInfo(shim, geo)
	require.NoError(t, err)
	table.SeedFromFSInfo(info)

	assert.EqualValues(t, 0, table.FreeCount())
}
