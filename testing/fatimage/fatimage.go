// Package fatimage supplies compressed fixture images and a scenario table
// for tests that exercise a mounted volume end to end, mirroring the way
// dargueta-disko's own testing package and utilities/compression keep disk
// fixtures small in the repository.
package fatimage

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/gofatfs/fatfs/bytesource"
	"github.com/gofatfs/fatfs/testing/fatimage/compression"
)

// Scenario describes one fixture file from the integration scenarios
// spec.md §8 names: a handful of files with varying sizes, one filled with
// a fixed byte and the rest with `i mod 256`.
type Scenario struct {
	Name      string `csv:"name"`
	SizeBytes uint   `csv:"size_bytes"`
	// FillByte is the byte every position in the file holds. Zero means
	// "fill with i mod 256" instead of a constant, matching spec.md §8's
	// literal "varying sizes ... filled with (i mod 256)" scenario.
	FillByte uint8 `csv:"fill_byte"`
}

// Content returns the scenario's fixture bytes per its fill rule.
func (s Scenario) Content() []byte {
	data := make([]byte, s.SizeBytes)
	for i := range data {
		if s.FillByte != 0 {
			data[i] = s.FillByte
		} else {
			data[i] = byte(i % 256)
		}
	}
	return data
}

//go:embed scenarios.csv
var scenariosRawCSV string

// Scenarios returns the fixture-file table embedded in scenarios.csv.
func Scenarios() ([]Scenario, error) {
	var scenarios []Scenario
	err := gocsv.UnmarshalToCallback(
		strings.NewReader(scenariosRawCSV),
		func(row Scenario) error {
			scenarios = append(scenarios, row)
			return nil
		},
	)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to load fixture scenarios: %w", err)
	}
	return scenarios, nil
}

// Load decompresses a gzip+RLE8-encoded disk image fixture and wraps the
// result as an in-memory ByteStore ready to mount, the way
// dargueta-disko's testing.LoadDiskImage prepares embedded fixtures for its
// own driver tests.
func Load(compressedImageBytes []byte, sectorSize, totalSectors uint) (blockio.ByteStore, error) {
	if len(compressedImageBytes) == 0 {
		return nil, fmt.Errorf("compressed image is empty")
	}

	imageBytes, err := compression.DecompressImageToBytes(bytes.NewReader(compressedImageBytes))
	if err != nil {
		return nil, err
	}

	expected := sectorSize * totalSectors
	if uint(len(imageBytes)) != expected {
		return nil, fmt.Errorf(
			"uncompressed image is the wrong size: expected %d bytes, got %d",
			expected,
			len(imageBytes),
		)
	}

	return bytesource.FromBytes(imageBytes), nil
}
