package direntry

import (
	"unicode/utf16"

	"github.com/gofatfs/fatfs/errors"
)

// lfnCharsPerSlot is how many UCS-2 code units one LFN slot carries, split
// across three runs at offsets 1, 14, and 28 within the 32-byte entry.
const lfnCharsPerSlot = 13

// lfnLastSlotFlag marks the slot holding the highest sequence number -- the
// first one written on disk, since LFN slots are stored in reverse logical
// order.
const lfnLastSlotFlag = 0x40

const lfnTerminator = 0x0000
const lfnPadding = 0xFFFF

// maxLongNameUnits is the longest long name, in UCS-2 code units, that
// ValidateLongName accepts.
const maxLongNameUnits = 255

// ValidateLongName checks a proposed long name against spec.md §4.4's rules
// and returns the name with trailing spaces and dots stripped (the display
// form FAT actually stores the LFN as). A stripped name longer than 255
// UCS-2 units fails with ErrInvalidFileNameLength.
func ValidateLongName(name string) (string, error) {
	if len(name) == 0 {
		return "", errors.ErrInvalidFileNameLength
	}

	units := utf16.Encode([]rune(name))
	if len(units) == 0 {
		return "", errors.ErrInvalidFileNameLength
	}

	for _, u := range units {
		if u > 0xFF {
			continue // non-ASCII code unit, always permitted in LFN.
		}
		if !ValidateLongNameByte(byte(u)) {
			return "", errors.ErrUnsupportedFileNameChar
		}
	}

	trimmed := trimTrailingSpacesAndDots(name)
	if trimmed == "" {
		return "", errors.ErrInvalidFileNameLength
	}
	if len(utf16.Encode([]rune(trimmed))) > maxLongNameUnits {
		return "", errors.ErrInvalidFileNameLength
	}
	return trimmed, nil
}

func trimTrailingSpacesAndDots(name string) string {
	end := len(name)
	for end > 0 && (name[end-1] == ' ' || name[end-1] == '.') {
		end--
	}
	return name[:end]
}

// EncodeLFNSlots splits name into the 32-byte LFN entries needed to store
// it, in on-disk order (last logical slot first), each stamped with
// checksum and its sequence number (1 for the first logical slot, with the
// last-slot flag added to the highest).
func EncodeLFNSlots(name string, checksum uint8) [][]byte {
	units := utf16.Encode([]rune(name))

	slotCount := (len(units) + lfnCharsPerSlot - 1) / lfnCharsPerSlot
	if slotCount == 0 {
		slotCount = 1
	}

	// Pad the unit stream with a terminator then 0xFFFF filler so every
	// slot's three runs are fully populated.
	padded := make([]uint16, slotCount*lfnCharsPerSlot)
	copy(padded, units)
	if len(units) < len(padded) {
		padded[len(units)] = lfnTerminator
		for i := len(units) + 1; i < len(padded); i++ {
			padded[i] = lfnPadding
		}
	}

	slots := make([][]byte, slotCount)
	for i := 0; i < slotCount; i++ {
		seq := uint8(i + 1)
		if i == slotCount-1 {
			seq |= lfnLastSlotFlag
		}
		chunk := padded[i*lfnCharsPerSlot : (i+1)*lfnCharsPerSlot]
		slots[slotCount-1-i] = encodeLFNSlot(seq, checksum, chunk)
	}
	return slots
}

func encodeLFNSlot(sequence, checksum uint8, chars []uint16) []byte {
	data := make([]byte, DirentSize)
	data[0] = sequence
	putUnits(data[1:11], chars[0:5])
	data[11] = AttrLongName
	data[12] = 0 // type, always 0
	data[13] = checksum
	putUnits(data[14:26], chars[5:11])
	putLE16(data[26:28], 0) // first-cluster field, always 0 for LFN slots
	putUnits(data[28:32], chars[11:13])
	return data
}

func putUnits(dst []byte, units []uint16) {
	for i, u := range units {
		putLE16(dst[i*2:i*2+2], u)
	}
}

func getUnits(src []byte, n int) []uint16 {
	units := make([]uint16, n)
	for i := range units {
		units[i] = le16(src[i*2 : i*2+2])
	}
	return units
}

// lfnSlot is a decoded LFN directory entry before it's been reassembled into
// a name.
type lfnSlot struct {
	sequence uint8
	isLast   bool
	checksum uint8
	units    []uint16
}

// decodeLFNSlot parses one 32-byte LFN entry. Callers should already have
// checked data[11] == AttrLongName.
func decodeLFNSlot(data []byte) lfnSlot {
	seq := data[0]
	units := make([]uint16, 0, 13)
	units = append(units, getUnits(data[1:11], 5)...)
	units = append(units, getUnits(data[14:26], 6)...)
	units = append(units, getUnits(data[28:32], 2)...)

	return lfnSlot{
		sequence: seq &^ lfnLastSlotFlag,
		isLast:   seq&lfnLastSlotFlag != 0,
		checksum: data[13],
		units:    units,
	}
}

// ReassembleLFN takes LFN slots in on-disk order (as enumerated, last
// logical slot first) and the checksum of the following short entry, and
// returns the long name. It returns an error if the sequence numbers are
// not contiguous starting at 1, if more than one slot claims to be last, or
// if the checksum doesn't match -- all symptoms of an orphaned run spec.md
// §4.5 says to treat as unusable.
func ReassembleLFN(onDiskSlots [][]byte, expectedChecksum uint8) (string, error) {
	if len(onDiskSlots) == 0 {
		return "", errors.ErrFileSystemCorrupted.WithMessage("no LFN slots to reassemble")
	}

	decoded := make([]lfnSlot, len(onDiskSlots))
	for i, raw := range onDiskSlots {
		decoded[i] = decodeLFNSlot(raw)
	}

	if !decoded[0].isLast {
		return "", errors.ErrFileSystemCorrupted.WithMessage("LFN run missing last-slot marker")
	}
	expectedSeq := len(decoded)
	for i, slot := range decoded {
		if i > 0 && slot.isLast {
			return "", errors.ErrFileSystemCorrupted.WithMessage("more than one LFN slot marked last")
		}
		if int(slot.sequence) != expectedSeq-i {
			return "", errors.ErrFileSystemCorrupted.WithMessage("LFN sequence numbers out of order")
		}
		if slot.checksum != expectedChecksum {
			return "", errors.ErrFileSystemCorrupted.WithMessage("LFN checksum does not match short entry")
		}
	}

	var units []uint16
	// decoded is in on-disk order (last-logical first); logical order is the
	// reverse.
	for i := len(decoded) - 1; i >= 0; i-- {
		units = append(units, decoded[i].units...)
	}

	for i, u := range units {
		if u == lfnTerminator {
			units = units[:i]
			break
		}
	}

	return string(utf16.Decode(units)), nil
}
