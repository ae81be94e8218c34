// Package direntry encodes and decodes FAT directory entries: the 32-byte
// short (8.3) entry, its long-file-name (LFN) extension, date/time packing,
// and short-name validation and derivation. Grounded on dargueta-disko's
// file_systems/fat/dirent.go, generalized with LFN support the teacher's own
// TODO left unimplemented.
package direntry

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/gofatfs/fatfs/errors"
)

// Attribute flags, identical across all three FAT variants.
const (
	AttrReadOnly   = 0x01
	AttrHidden     = 0x02
	AttrSystem     = 0x04
	AttrVolumeID   = 0x08
	AttrDirectory  = 0x10
	AttrArchive    = 0x20
	AttrDevice     = 0x40
	AttrReserved   = 0x80
	AttrLongName   = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
	AttrLongMask   = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID | AttrDirectory | AttrArchive
)

// DirentSize is the on-disk size of a single directory slot, short or LFN.
const DirentSize = 32

// statusFree marks a slot as never used; enumeration stops at the first one.
// statusDeleted marks a slot as reclaimable. statusEscapedE5 means the first
// byte of the real name is 0xE5, escaped because that byte value is the
// deleted marker.
const (
	statusFree      = 0x00
	statusDeleted   = 0xE5
	statusEscapedE5 = 0x05
)

// epoch is the earliest representable FAT timestamp: 1980-01-01 00:00:00.
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// RawDirent is the on-disk layout of a short (8.3) directory entry.
type RawDirent struct {
	Name              [8]byte
	Extension         [3]byte
	AttributeFlags    uint8
	NTReserved        uint8
	CreatedTimeTenths uint8
	CreatedTime       uint16
	CreatedDate       uint16
	LastAccessedDate  uint16
	FirstClusterHigh  uint16
	LastModifiedTime  uint16
	LastModifiedDate  uint16
	FirstClusterLow   uint16
	FileSize          uint32
}

// Dirent is the decoded, user-facing form of one logical directory entry
// (its short slot, plus whatever long name its LFN slots spelled out).
type Dirent struct {
	ShortName      string // "NAME.EXT", uppercase, as stored on disk
	LongName       string // "" if the entry has no LFN extension
	AttributeFlags uint8
	FirstCluster   uint32
	SizeBytes      uint32
	CreatedAt      time.Time
	LastAccessedAt time.Time
	LastModifiedAt time.Time
	deleted        bool
}

// Name returns the long name if present, else the short name -- the display
// name callers should see.
func (d *Dirent) Name() string {
	if d.LongName != "" {
		return d.LongName
	}
	return d.ShortName
}

// IsDir reports whether the entry's directory attribute is set.
func (d *Dirent) IsDir() bool {
	return d.AttributeFlags&AttrDirectory != 0
}

// IsVolumeLabel reports whether the entry is the volume-label pseudo-entry.
func (d *Dirent) IsVolumeLabel() bool {
	return d.AttributeFlags&AttrVolumeID != 0
}

// Mode derives an os.FileMode consistent with the entry's attribute flags.
// FAT has no executable bit, so every file is reported as executable; that's
// the convention the teacher's own AttrFlagsToFileMode follows.
func (d *Dirent) Mode() os.FileMode {
	var mode os.FileMode
	if d.AttributeFlags&AttrReadOnly != 0 {
		mode = 0o555
	} else {
		mode = 0o777
	}
	if d.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

// Size satisfies fs.FileInfo.
func (d *Dirent) Size() int64 {
	return int64(d.SizeBytes)
}

// ModTime satisfies fs.FileInfo, reporting the entry's last-modified time.
func (d *Dirent) ModTime() time.Time {
	return d.LastModifiedAt
}

// Sys satisfies fs.FileInfo; callers that need the raw entry use it directly
// rather than type-asserting through Sys.
func (d *Dirent) Sys() any {
	return nil
}

// Type satisfies fs.DirEntry, returning the entry's mode bits restricted to
// the type bits fs.DirEntry documents (fs.ModeDir or 0).
func (d *Dirent) Type() fs.FileMode {
	return d.Mode().Type()
}

// Info satisfies fs.DirEntry by returning the entry itself as an
// fs.FileInfo.
func (d *Dirent) Info() (fs.FileInfo, error) {
	return d, nil
}

// DateToUint16 packs a time.Time into the FAT date encoding: bits 15-9 year
// offset from 1980, 8-5 month, 4-0 day.
func DateToUint16(t time.Time) uint16 {
	year := t.Year() - 1980
	if year < 0 {
		year = 0
	}
	return uint16(year<<9) | uint16(t.Month())<<5 | uint16(t.Day())
}

// TimeToUint16 packs a time.Time into the FAT time encoding: bits 15-11
// hours, 10-5 minutes, 4-0 seconds/2.
func TimeToUint16(t time.Time) uint16 {
	return uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
}

// DateFromUint16 unpacks a FAT date field into a time.Time at midnight UTC.
func DateFromUint16(value uint16) time.Time {
	day := int(value & 0x001F)
	month := time.Month((value >> 5) & 0x000F)
	year := 1980 + int(value>>9)
	if day == 0 {
		day = 1
	}
	if month == 0 {
		month = time.January
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TimestampFromParts combines a FAT date, time, and optional tenths-of-a-
// second field into a single time.Time.
func TimestampFromParts(datePart, timePart uint16, tenths uint8) time.Time {
	d := DateFromUint16(datePart)

	seconds := int(timePart&0x001F) * 2
	nanos := 0
	if tenths > 0 {
		seconds += int(tenths) / 10
		nanos = (int(tenths) % 10) * 100_000_000
	}
	minutes := int((timePart >> 5) & 0x003F)
	hours := int(timePart >> 11)

	return time.Date(d.Year(), d.Month(), d.Day(), hours, minutes, seconds, nanos, time.UTC)
}

// ShortNameChecksum computes the checksum LFN entries store to link back to
// their associated short entry, per spec.md's "sum = ((sum>>1) |
// ((sum&1)<<7)) + byte mod 256" algorithm.
func ShortNameChecksum(packedName [11]byte) uint8 {
	var sum uint8
	for _, b := range packedName {
		sum = ((sum >> 1) | (sum << 7)) + b
	}
	return sum
}

// DecodeShort parses 32 raw bytes into a RawDirent. Callers check
// data[0] against statusFree/statusDeleted before further processing.
func DecodeShort(data []byte) RawDirent {
	var raw RawDirent
	copy(raw.Name[:], data[0:8])
	copy(raw.Extension[:], data[8:11])
	raw.AttributeFlags = data[11]
	raw.NTReserved = data[12]
	raw.CreatedTimeTenths = data[13]
	raw.CreatedTime = le16(data[14:16])
	raw.CreatedDate = le16(data[16:18])
	raw.LastAccessedDate = le16(data[18:20])
	raw.FirstClusterHigh = le16(data[20:22])
	raw.LastModifiedTime = le16(data[22:24])
	raw.LastModifiedDate = le16(data[24:26])
	raw.FirstClusterLow = le16(data[26:28])
	raw.FileSize = le32(data[28:32])
	return raw
}

// EncodeShort serializes a RawDirent into a fresh 32-byte slot.
func EncodeShort(raw RawDirent) []byte {
	data := make([]byte, DirentSize)
	copy(data[0:8], raw.Name[:])
	copy(data[8:11], raw.Extension[:])
	data[11] = raw.AttributeFlags
	data[12] = raw.NTReserved
	data[13] = raw.CreatedTimeTenths
	putLE16(data[14:16], raw.CreatedTime)
	putLE16(data[16:18], raw.CreatedDate)
	putLE16(data[18:20], raw.LastAccessedDate)
	putLE16(data[20:22], raw.FirstClusterHigh)
	putLE16(data[22:24], raw.LastModifiedTime)
	putLE16(data[24:26], raw.LastModifiedDate)
	putLE16(data[26:28], raw.FirstClusterLow)
	putLE32(data[28:32], raw.FileSize)
	return data
}

// DirentFromRaw converts a decoded RawDirent (plus an optional long name
// already reassembled from its LFN slots) into the user-facing Dirent.
func DirentFromRaw(raw RawDirent, longName string) (*Dirent, error) {
	name, err := shortNameFromRaw(raw)
	if err != nil {
		return nil, err
	}

	firstCluster := uint32(raw.FirstClusterHigh)<<16 | uint32(raw.FirstClusterLow)

	return &Dirent{
		ShortName:      name,
		LongName:       longName,
		AttributeFlags: raw.AttributeFlags,
		FirstCluster:   firstCluster,
		SizeBytes:      raw.FileSize,
		CreatedAt:      TimestampFromParts(raw.CreatedDate, raw.CreatedTime, raw.CreatedTimeTenths),
		LastAccessedAt: DateFromUint16(raw.LastAccessedDate),
		LastModifiedAt: TimestampFromParts(raw.LastModifiedDate, raw.LastModifiedTime, 0),
	}, nil
}

// RawFromDirent serializes a Dirent back into the on-disk short-entry form,
// packing the already-validated short name.
func RawFromDirent(d *Dirent, packedName [11]byte) RawDirent {
	return RawDirent{
		Name:              [8]byte(packedName[:8]),
		Extension:         [3]byte(packedName[8:11]),
		AttributeFlags:    d.AttributeFlags,
		CreatedTime:       TimeToUint16(d.CreatedAt),
		CreatedDate:       DateToUint16(d.CreatedAt),
		LastAccessedDate:  DateToUint16(d.LastAccessedAt),
		FirstClusterHigh:  uint16(d.FirstCluster >> 16),
		LastModifiedTime:  TimeToUint16(d.LastModifiedAt),
		LastModifiedDate:  DateToUint16(d.LastModifiedAt),
		FirstClusterLow:   uint16(d.FirstCluster & 0xFFFF),
		FileSize:          d.SizeBytes,
	}
}

func shortNameFromRaw(raw RawDirent) (string, error) {
	if raw.Name[0] == statusFree {
		return "", errors.ErrNotFound
	}

	nameBytes := make([]byte, 8)
	copy(nameBytes, raw.Name[:])
	// statusDeleted itself is handled by callers before this point; a
	// deleted entry's original first byte is not recoverable on disk, so it
	// is left as 0xE5 rather than reconstructed. statusEscapedE5 is the
	// real on-disk escape for a live entry whose name starts with 0xE5.
	if nameBytes[0] == statusEscapedE5 {
		nameBytes[0] = 0xE5
	}

	name := strings.TrimRight(string(nameBytes), " ")
	ext := strings.TrimRight(string(raw.Extension[:]), " ")
	if ext == "" {
		return name, nil
	}
	return name + "." + ext, nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
