package volume_test

import (
	"testing"

	"github.com/gofatfs/fatfs/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBPB_FAT12(t *testing.T) {
	// 2847 data clusters worth of geometry -> classifies as FAT12.
	sector0 := buildBootSector(512, 1, 1, 2, 224, 2880, 0, 9, 0, 0, 0)
	geo, err := volume.ParseBPB(sector0)
	require.NoError(t, err)
	assert.Equal(t, volume.Fat12, geo.Variant)
	assert.EqualValues(t, 512, geo.BytesPerSector)
	assert.EqualValues(t, 14, geo.RootDirSectors)
}

func TestParseBPB_FAT32(t *testing.T) {
	sector0 := buildBootSector(512, 8, 32, 2, 0, 0, 600000, 0, 1000, 2, 1)
	geo, err := volume.ParseBPB(sector0)
	require.NoError(t, err)
	assert.Equal(t, volume.Fat32, geo.Variant)
	assert.EqualValues(t, 2, geo.RootCluster)
	assert.EqualValues(t, 1, geo.FSInfoSector)
	assert.Zero(t, geo.RootDirSectors)
}

func TestParseBPB_RejectsBadBytesPerSector(t *testing.T) {
	sector0 := buildBootSector(500, 1, 1, 2, 224, 2880, 0, 9, 0, 0, 0)
	_, err := volume.ParseBPB(sector0)
	assert.Error(t, err)
}

func TestParseBPB_RejectsZeroReservedSectors(t *testing.T) {
	sector0 := buildBootSector(512, 1, 0, 2, 224, 2880, 0, 9, 0, 0, 0)
	_, err := volume.ParseBPB(sector0)
	assert.Error(t, err)
}

func TestParseBPB_RejectsBadNumFATs(t *testing.T) {
	sector0 := buildBootSector(512, 1, 1, 3, 224, 2880, 0, 9, 0, 0, 0)
	_, err := volume.ParseBPB(sector0)
	assert.Error(t, err)
}

func TestDetermineVariantThresholds(t *testing.T) {
	assert.Equal(t, volume.Fat12, volume.DetermineVariant(4084))
	assert.Equal(t, volume.Fat16, volume.DetermineVariant(4085))
	assert.Equal(t, volume.Fat16, volume.DetermineVariant(65524))
	assert.Equal(t, volume.Fat32, volume.DetermineVariant(65525))
}
