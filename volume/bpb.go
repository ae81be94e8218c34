// Package volume mounts a FAT12/16/32 image: it parses the boot sector and
// BIOS Parameter Block, classifies the FAT variant, derives cluster geometry,
// and exposes the read-only [Geometry] every other layer of the engine builds
// on. Grounded on dargueta-disko's drivers/fat/common.go boot-sector parser.
package volume

import (
	"bytes"
	"encoding/binary"

	"github.com/gofatfs/fatfs/errors"
)

// Variant identifies which of the three FAT on-disk encodings a volume uses.
type Variant int

const (
	Fat12 Variant = iota
	Fat16
	Fat32
)

func (v Variant) String() string {
	switch v {
	case Fat12:
		return "FAT12"
	case Fat16:
		return "FAT16"
	case Fat32:
		return "FAT32"
	default:
		return "unknown"
	}
}

// rawBPB is the on-disk layout of the common portion of the boot sector,
// shared by all three FAT variants.
type rawBPB struct {
	JmpBoot         [3]byte
	OEMName         [8]byte
	BytesPerSector  uint16
	SecPerCluster   uint8
	ReservedSectors uint16
	NumFATs         uint8
	RootEntryCount  uint16
	TotalSectors16  uint16
	Media           uint8
	SectorsPerFAT16 uint16
	SectorsPerTrack uint16
	NumHeads        uint16
	HiddenSectors   uint32
	TotalSectors32  uint32
}

// rawFAT32Extension is the portion of the BPB unique to FAT32, immediately
// following rawBPB.
type rawFAT32Extension struct {
	SectorsPerFAT32 uint32
	ExtFlags        uint16
	FSVersion       uint16
	RootCluster     uint32
	FSInfoSector    uint16
	BackupBootSec   uint16
	Reserved        [12]byte
	DriveNumber     uint8
	NTReserved      uint8
	BootSignature   uint8
	VolumeID        uint32
	VolumeLabel     [11]byte
	FileSystemType  [8]byte
}

// Geometry is the immutable, fully-derived description of a mounted volume's
// cluster layout, as described by spec.md's "Volume descriptor" data model.
type Geometry struct {
	BytesPerSector    uint
	SectorsPerCluster uint
	ReservedSectors   uint
	NumFATs           uint
	RootEntryCount    uint
	TotalSectors      uint
	SectorsPerFAT     uint
	Variant           Variant

	RootDirSectors  uint
	FirstFATSector  uint
	FirstDataSector uint
	// FirstRootDirSector is valid only for FAT12/16; FAT32 roots are a regular
	// cluster chain starting at RootCluster instead.
	FirstRootDirSector uint
	RootCluster        uint32

	BytesPerCluster uint
	TotalClusters   uint
	LastDataCluster uint32

	// FSInfoSector is valid only for FAT32; 0 otherwise.
	FSInfoSector uint
	VolumeLabel  string
	OEMName      string
}

// DetermineVariant applies the FAT specification's cluster-count thresholds.
// This is the only correct way to classify a FAT volume; the BPB's own
// filesystem-type string field is informational only and must never be
// trusted for dispatch.
func DetermineVariant(totalClusters uint) Variant {
	if totalClusters < 4085 {
		return Fat12
	}
	if totalClusters < 65525 {
		return Fat16
	}
	return Fat32
}

func isPowerOfTwoInRange(v, lo, hi uint) bool {
	if v < lo || v > hi {
		return false
	}
	return v&(v-1) == 0
}

// ParseBPB reads and validates the first sectors of a FAT volume, returning
// the derived Geometry. sector0 must contain at least 90 bytes (the common
// BPB plus the FAT32 extension, which is only consulted when needed).
func ParseBPB(sector0 []byte) (*Geometry, error) {
	if len(sector0) < 36 {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("boot sector too short")
	}

	var raw rawBPB
	if err := binary.Read(bytes.NewReader(sector0), binary.LittleEndian, &raw); err != nil {
		return nil, errors.ErrFileSystemCorrupted.Wrap(err)
	}

	if !isPowerOfTwoInRange(uint(raw.BytesPerSector), 512, 4096) {
		return nil, errors.ErrFileSystemCorrupted.WithMessage(
			"bytes-per-sector must be a power of two in [512, 4096]")
	}
	if !isPowerOfTwoInRange(uint(raw.SecPerCluster), 1, 128) {
		return nil, errors.ErrFileSystemCorrupted.WithMessage(
			"sectors-per-cluster must be a power of two in [1, 128]")
	}
	if raw.ReservedSectors == 0 {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("reserved sector count is zero")
	}
	if raw.NumFATs != 1 && raw.NumFATs != 2 {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("number of FATs must be 1 or 2")
	}

	totalSectors := uint(raw.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = uint(raw.TotalSectors32)
	}

	rootDirSectors := (uint(raw.RootEntryCount)*32 + uint(raw.BytesPerSector) - 1) / uint(raw.BytesPerSector)

	sectorsPerFAT := uint(raw.SectorsPerFAT16)
	var fat32 rawFAT32Extension
	isFAT32Layout := raw.SectorsPerFAT16 == 0
	if isFAT32Layout {
		if len(sector0) < 36+54 {
			return nil, errors.ErrFileSystemCorrupted.WithMessage(
				"boot sector too short for FAT32 extension")
		}
		if err := binary.Read(bytes.NewReader(sector0[36:]), binary.LittleEndian, &fat32); err != nil {
			return nil, errors.ErrFileSystemCorrupted.Wrap(err)
		}
		sectorsPerFAT = uint(fat32.SectorsPerFAT32)
	}

	dataSectors := totalSectors - raw.sectorsReservedTotal(rootDirSectors, sectorsPerFAT)
	totalClusters := dataSectors / uint(raw.SecPerCluster)

	variant := DetermineVariant(totalClusters)
	if variant == Fat32 && rootDirSectors != 0 {
		return nil, errors.ErrFileSystemCorrupted.WithMessage(
			"FAT32 volume has a nonzero fixed root directory region")
	}
	bytesPerCluster := uint(raw.BytesPerSector) * uint(raw.SecPerCluster)
	if bytesPerCluster > 32768 {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("bytes-per-cluster exceeds 32768")
	}

	firstFATSector := uint(raw.ReservedSectors)
	firstRootDirSector := firstFATSector + uint(raw.NumFATs)*sectorsPerFAT
	firstDataSector := firstRootDirSector + rootDirSectors

	geo := &Geometry{
		BytesPerSector:     uint(raw.BytesPerSector),
		SectorsPerCluster:  uint(raw.SecPerCluster),
		ReservedSectors:    uint(raw.ReservedSectors),
		NumFATs:            uint(raw.NumFATs),
		RootEntryCount:     uint(raw.RootEntryCount),
		TotalSectors:       totalSectors,
		SectorsPerFAT:      sectorsPerFAT,
		Variant:            variant,
		RootDirSectors:     rootDirSectors,
		FirstFATSector:     firstFATSector,
		FirstDataSector:    firstDataSector,
		FirstRootDirSector: firstRootDirSector,
		BytesPerCluster:    bytesPerCluster,
		TotalClusters:      totalClusters,
		LastDataCluster:    uint32(totalClusters) + 1,
		OEMName:            trimTrailingSpaces(raw.OEMName[:]),
	}

	if variant == Fat32 {
		geo.RootCluster = fat32.RootCluster
		geo.FSInfoSector = uint(fat32.FSInfoSector)
		geo.VolumeLabel = trimTrailingSpaces(fat32.VolumeLabel[:])
	}

	return geo, nil
}

// sectorsReservedTotal returns the number of sectors that precede the data
// region: reserved sectors, every FAT, and the fixed root directory.
func (raw rawBPB) sectorsReservedTotal(rootDirSectors, sectorsPerFAT uint) uint {
	return uint(raw.ReservedSectors) + uint(raw.NumFATs)*sectorsPerFAT + rootDirSectors
}

func trimTrailingSpaces(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}
