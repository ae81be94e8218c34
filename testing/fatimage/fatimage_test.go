package fatimage_test

import (
	"bytes"
	"testing"

	"github.com/gofatfs/fatfs/testing/fatimage"
	"github.com/gofatfs/fatfs/testing/fatimage/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenariosParsesEmbeddedTable(t *testing.T) {
	scenarios, err := fatimage.Scenarios()
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		names[s.Name] = true
		assert.NotZero(t, s.SizeBytes)
	}
	assert.True(t, names["tiny.bin"])
	assert.True(t, names["large.bin"])
}

func TestScenarioContentFillsWithIndexModuloByteByDefault(t *testing.T) {
	s := fatimage.Scenario{Name: "x", SizeBytes: 300}
	content := s.Content()
	require.Len(t, content, 300)
	assert.EqualValues(t, 0, content[0])
	assert.EqualValues(t, 255, content[255])
	assert.EqualValues(t, 256%256, content[256])
	assert.EqualValues(t, 299%256, content[299])
}

func TestScenarioContentUsesFixedFillByteWhenSet(t *testing.T) {
	s := fatimage.Scenario{Name: "x", SizeBytes: 10, FillByte: 0x42}
	content := s.Content()
	for _, b := range content {
		assert.EqualValues(t, 0x42, b)
	}
}

func TestLoadRoundTripsACompressedFixture(t *testing.T) {
	const sectorSize = 512
	const totalSectors = 4
	original := bytes.Repeat([]byte{0xAB}, sectorSize*totalSectors)

	var compressed bytes.Buffer
	_, err := compression.CompressImage(bytes.NewReader(original), &compressed)
	require.NoError(t, err)

	store, err := fatimage.Load(compressed.Bytes(), sectorSize, totalSectors)
	require.NoError(t, err)

	roundTripped := make([]byte, len(original))
	n, err := store.ReadAt(roundTripped, 0)
	require.NoError(t, err)
	assert.Equal(t, len(original), n)
	assert.Equal(t, original, roundTripped)
}

func TestLoadRejectsWrongSizedFixture(t *testing.T) {
	var compressed bytes.Buffer
	_, err := compression.CompressImage(bytes.NewReader([]byte{1, 2, 3}), &compressed)
	require.NoError(t, err)

	_, err = fatimage.Load(compressed.Bytes(), 512, 4)
	assert.Error(t, err)
}
