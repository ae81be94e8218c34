package engine_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/gofatfs/fatfs/bytesource"
	"github.com/gofatfs/fatfs/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bytesPerSector = 512

// buildFAT16Image assembles a minimal, valid boot sector in the FAT16 layout
// (16-bit sectors-per-FAT field, FAT sized at 2 bytes per entry) followed by
// zeroed FAT and data regions sized to match the declared geometry, so
// engine.Mount has a complete image to parse rather than just a boot sector.
// Mount classifies the variant by cluster count, so the 40-cluster image
// these tests build mounts as FAT12.
func buildFAT16Image(t *testing.T, rootEntries uint16, dataClusters uint) []byte {
	t.Helper()

	const secPerCluster = 1
	const numFATs = 1
	const reservedSectors = 1

	fatBytes := (uint32(dataClusters) + 2) * 2
	sectorsPerFAT := uint16((fatBytes + bytesPerSector - 1) / bytesPerSector)
	rootDirSectors := (uint32(rootEntries)*32 + bytesPerSector - 1) / bytesPerSector
	firstDataSector := reservedSectors + numFATs*uint32(sectorsPerFAT) + rootDirSectors
	totalSectors := firstDataSector + uint32(dataClusters)*secPerCluster

	buf := make([]byte, totalSectors*bytesPerSector)
	buf[0], buf[1], buf[2] = 0xEB, 0x3C, 0x90
	copy(buf[3:11], []byte("MSWIN4.1"))
	binary.LittleEndian.PutUint16(buf[11:13], bytesPerSector)
	buf[13] = secPerCluster
	binary.LittleEndian.PutUint16(buf[14:16], reservedSectors)
	buf[16] = numFATs
	binary.LittleEndian.PutUint16(buf[17:19], rootEntries)
	binary.LittleEndian.PutUint16(buf[19:21], uint16(totalSectors))
	buf[21] = 0xF8
	binary.LittleEndian.PutUint16(buf[22:24], sectorsPerFAT)
	binary.LittleEndian.PutUint16(buf[24:26], 63)
	binary.LittleEndian.PutUint16(buf[26:28], 255)
	buf[510] = 0x55
	buf[511] = 0xAA
	return buf
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func mountFAT16(t *testing.T) *engine.Volume {
	t.Helper()
	image := buildFAT16Image(t, 16, 40)
	store := bytesource.FromBytes(image)
	vol, err := engine.Mount(store, engine.MountOptions{TimeProvider: fixedClock})
	require.NoError(t, err)
	return vol
}

func TestMountRejectsMissingSignature(t *testing.T) {
	image := buildFAT16Image(t, 16, 40)
	image[510] = 0
	_, err := engine.Mount(bytesource.FromBytes(image), engine.MountOptions{})
	assert.Error(t, err)
}

func TestMountParsesGeometryAndStat(t *testing.T) {
	vol := mountFAT16(t)

	geo := vol.Geometry()
	assert.EqualValues(t, 40, geo.TotalClusters)

	stats, err := vol.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 40, stats.TotalBlocks)
	assert.Equal(t, stats.TotalBlocks, stats.BlocksFree)
}

func TestOpenFileCreatesAndRoundTripsData(t *testing.T) {
	vol := mountFAT16(t)

	h, err := vol.OpenFile("/docs/readme.txt", false)
	assert.Error(t, err)

	require.NoError(t, vol.Mkdir("docs"))

	h, err = vol.OpenFile("/docs/readme.txt", true)
	require.NoError(t, err)

	_, err = h.Write([]byte("hello, disk"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	entries, err := vol.ReadDir("docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "readme.txt", entries[0].LongName)
}

func TestMkdirThenReadDirListsSubdirectories(t *testing.T) {
	vol := mountFAT16(t)

	require.NoError(t, vol.Mkdir("alpha"))
	require.NoError(t, vol.Mkdir("beta"))

	entries, err := vol.ReadDir("/")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.ShortName)
	}
	assert.Contains(t, names, "ALPHA~1")
	assert.Contains(t, names, "BETA~1")
}

func TestRemoveRejectsNonEmptyDirectory(t *testing.T) {
	vol := mountFAT16(t)

	require.NoError(t, vol.Mkdir("full"))
	h, err := vol.OpenFile("/full/a.txt", true)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	err = vol.Remove("full")
	assert.Error(t, err)
}

func TestRenameMovesFileBetweenDirectories(t *testing.T) {
	vol := mountFAT16(t)

	require.NoError(t, vol.Mkdir("src"))
	require.NoError(t, vol.Mkdir("dst"))

	h, err := vol.OpenFile("/src/a.txt", true)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, vol.Rename("src/a.txt", "dst/a.txt"))

	_, err = vol.OpenFile("src/a.txt", false)
	assert.Error(t, err)

	h, err = vol.OpenFile("dst/a.txt", false)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}

func TestCloseSucceedsOnFAT12Volume(t *testing.T) {
	vol := mountFAT16(t)
	assert.NoError(t, vol.Close())
}
