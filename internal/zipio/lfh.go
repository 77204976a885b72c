package zipio

import "encoding/binary"

// localFileHeaderFixedSize is the fixed-width portion of a Local File
// Header, before the variable-length name (FIF never emits an LFH extra
// field — see LocalFileHeaderSize).
const localFileHeaderFixedSize = 30

// buildStreamingLocalFileHeader returns the bytes of an LFH for a member
// that will be streamed in with general-purpose flag bit 3 set (spec.md
// §4.3): sizes and CRC are zeroed and recorded later in the trailing
// data descriptor and Central Directory entry.
func buildStreamingLocalFileHeader(name string, method Compression, modDate, modTime uint16) []byte {
	buf := make([]byte, localFileHeaderFixedSize+len(name))
	binary.LittleEndian.PutUint32(buf[0:4], sigLocalFileHeader)
	binary.LittleEndian.PutUint16(buf[4:6], versionNeededZip64)
	binary.LittleEndian.PutUint16(buf[6:8], flagDataDescriptor)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(method))
	binary.LittleEndian.PutUint16(buf[10:12], modTime)
	binary.LittleEndian.PutUint16(buf[12:14], modDate)
	// CRC32, compressed size, uncompressed size all zero (bytes 14-26).
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(buf[28:30], 0) // extra field length
	copy(buf[30:], name)
	return buf
}

// dataDescriptorBytes returns the 12-byte trailer spec.md §6 mandates for
// every streamed member: <CRC32:u32 LE><compressed_size:u32 LE><uncompressed_size:u32 LE>.
func dataDescriptorBytes(crc32 uint32, compSize, uncompSize uint64) []byte {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], crc32)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(compSize))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(uncompSize))
	return buf[:]
}
