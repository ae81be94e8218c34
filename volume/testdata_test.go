package volume_test

import "encoding/binary"

// buildBootSector assembles a minimal, valid boot sector + BPB for the given
// geometry, for bpb_test.go's parser tests, which need a synthetic boot
// sector without loading a fixture from disk.
func buildBootSector(bytesPerSector uint16, secPerCluster uint8, reservedSectors uint16,
	numFATs uint8, rootEntryCount uint16, totalSectors16 uint16, totalSectors32 uint32,
	sectorsPerFAT16 uint16, sectorsPerFAT32 uint32, rootCluster uint32, fsInfoSector uint16,
) []byte {
	buf := make([]byte, 512)
	buf[0], buf[1], buf[2] = 0xEB, 0x3C, 0x90
	copy(buf[3:11], []byte("MSWIN4.1"))
	binary.LittleEndian.PutUint16(buf[11:13], bytesPerSector)
	buf[13] = secPerCluster
	binary.LittleEndian.PutUint16(buf[14:16], reservedSectors)
	buf[16] = numFATs
	binary.LittleEndian.PutUint16(buf[17:19], rootEntryCount)
	binary.LittleEndian.PutUint16(buf[19:21], totalSectors16)
	buf[21] = 0xF8
	binary.LittleEndian.PutUint16(buf[22:24], sectorsPerFAT16)
	binary.LittleEndian.PutUint16(buf[24:26], 63)
	binary.LittleEndian.PutUint16(buf[26:28], 255)
	binary.LittleEndian.PutUint32(buf[28:32], 0)
	binary.LittleEndian.PutUint32(buf[32:36], totalSectors32)

	if sectorsPerFAT16 == 0 {
		binary.LittleEndian.PutUint32(buf[36:40], sectorsPerFAT32)
		binary.LittleEndian.PutUint32(buf[44:48], rootCluster)
		binary.LittleEndian.PutUint16(buf[48:50], fsInfoSector)
		buf[64] = 0x80
		buf[66] = 0x29
		binary.LittleEndian.PutUint32(buf[67:71], 0x12345678)
		copy(buf[71:82], []byte("NO NAME    "))
		copy(buf[82:90], []byte("FAT32   "))
	}

	buf[510] = 0x55
	buf[511] = 0xAA
	return buf
}
