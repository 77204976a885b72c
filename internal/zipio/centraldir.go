package zipio

import (
	"bytes"
	"encoding/binary"
)

// WriteCentralDirectory serializes entries as a Central Directory
// followed by an End Of Central Directory record, writing a Zip64 EOCD
// record and locator ahead of the standard EOCD whenever any entry, or
// the aggregate entry count/CD size/CD offset, overflows 32-bit fields.
// cdStart is the byte offset in the volume where the CD begins.
func WriteCentralDirectory(entries []CDEntry, cdStart uint64) []byte {
	var cd bytes.Buffer
	anyZip64 := false

	for _, e := range entries {
		z64 := needsZip64(e)
		if z64 {
			anyZip64 = true
		}
		writeCDEntry(&cd, e, z64)
	}

	cdSize := uint64(cd.Len())
	count := uint64(len(entries))

	var out bytes.Buffer
	out.Write(cd.Bytes())

	needZip64Trailer := anyZip64 || count > zip16Max || cdSize > zip32Max || cdStart > zip32Max
	if needZip64Trailer {
		writeZip64EOCD(&out, count, cdSize, cdStart)
	}
	writeEOCD(&out, count, cdSize, cdStart, needZip64Trailer)

	return out.Bytes()
}

func writeCDEntry(w *bytes.Buffer, e CDEntry, z64 bool) {
	var fixed [46]byte
	binary.LittleEndian.PutUint32(fixed[0:4], sigCentralDirEntry)
	binary.LittleEndian.PutUint16(fixed[4:6], versionMadeBy)
	binary.LittleEndian.PutUint16(fixed[6:8], versionNeededZip64)
	binary.LittleEndian.PutUint16(fixed[8:10], flagDataDescriptor)
	binary.LittleEndian.PutUint16(fixed[10:12], uint16(e.Method))

	date, dostime := dateTimeFields(e.DateTime)
	binary.LittleEndian.PutUint16(fixed[12:14], dostime)
	binary.LittleEndian.PutUint16(fixed[14:16], date)
	binary.LittleEndian.PutUint32(fixed[16:20], e.CRC32)

	var extra bytes.Buffer
	if z64 {
		binary.LittleEndian.PutUint32(fixed[20:24], zip32Max)
		binary.LittleEndian.PutUint32(fixed[24:28], zip32Max)
		writeZip64Extra(&extra, e.UncompressedSize, e.CompressedSize, e.HeaderOffset)
	} else {
		binary.LittleEndian.PutUint32(fixed[20:24], uint32(e.CompressedSize))
		binary.LittleEndian.PutUint32(fixed[24:28], uint32(e.UncompressedSize))
	}

	binary.LittleEndian.PutUint16(fixed[28:30], uint16(len(e.Name)))
	binary.LittleEndian.PutUint16(fixed[30:32], uint16(extra.Len()))
	binary.LittleEndian.PutUint16(fixed[32:34], 0) // comment length
	binary.LittleEndian.PutUint16(fixed[34:36], 0) // disk number start
	binary.LittleEndian.PutUint16(fixed[36:38], 0) // internal attrs
	binary.LittleEndian.PutUint32(fixed[38:42], 0) // external attrs

	if z64 {
		binary.LittleEndian.PutUint32(fixed[42:46], zip32Max)
	} else {
		binary.LittleEndian.PutUint32(fixed[42:46], uint32(e.HeaderOffset))
	}

	w.Write(fixed[:])
	w.WriteString(e.Name)
	w.Write(extra.Bytes())
}

func writeZip64Extra(w *bytes.Buffer, uncompSize, compSize, headerOffset uint64) {
	var buf [28]byte
	binary.LittleEndian.PutUint16(buf[0:2], zip64ExtraID)
	binary.LittleEndian.PutUint16(buf[2:4], 24) // payload size: 3 x uint64
	binary.LittleEndian.PutUint64(buf[4:12], uncompSize)
	binary.LittleEndian.PutUint64(buf[12:20], compSize)
	binary.LittleEndian.PutUint64(buf[20:28], headerOffset)
	w.Write(buf[:])
}

func writeZip64EOCD(w *bytes.Buffer, count, cdSize, cdStart uint64) {
	var buf [56]byte
	binary.LittleEndian.PutUint32(buf[0:4], sigZip64EOCD)
	binary.LittleEndian.PutUint64(buf[4:12], 44) // remaining record size
	binary.LittleEndian.PutUint16(buf[12:14], versionMadeBy)
	binary.LittleEndian.PutUint16(buf[14:16], versionNeededZip64)
	binary.LittleEndian.PutUint32(buf[16:20], 0) // this disk
	binary.LittleEndian.PutUint32(buf[20:24], 0) // disk with CD start
	binary.LittleEndian.PutUint64(buf[24:32], count)
	binary.LittleEndian.PutUint64(buf[32:40], count)
	binary.LittleEndian.PutUint64(buf[40:48], cdSize)
	binary.LittleEndian.PutUint64(buf[48:56], cdStart)
	w.Write(buf[:])

	zip64EOCDOffset := cdStart + cdSize
	var loc [20]byte
	binary.LittleEndian.PutUint32(loc[0:4], sigZip64EOCDLocator)
	binary.LittleEndian.PutUint32(loc[4:8], 0)
	binary.LittleEndian.PutUint64(loc[8:16], zip64EOCDOffset)
	binary.LittleEndian.PutUint32(loc[16:20], 1)
	w.Write(loc[:])
}

func writeEOCD(w *bytes.Buffer, count, cdSize, cdStart uint64, zip64 bool) {
	var buf [22]byte
	binary.LittleEndian.PutUint32(buf[0:4], sigEOCD)
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], 0)

	entryField := uint16(count)
	cdSizeField := uint32(cdSize)
	cdStartField := uint32(cdStart)
	if zip64 {
		entryField = zip16Max
		cdSizeField = zip32Max
		cdStartField = zip32Max
	}
	binary.LittleEndian.PutUint16(buf[8:10], entryField)
	binary.LittleEndian.PutUint16(buf[10:12], entryField)
	binary.LittleEndian.PutUint32(buf[12:16], cdSizeField)
	binary.LittleEndian.PutUint32(buf[16:20], cdStartField)
	binary.LittleEndian.PutUint16(buf[20:22], 0)
	w.Write(buf[:])
}

func dateTimeFields(packed uint32) (date uint16, dostime uint16) {
	return uint16(packed >> 16), uint16(packed)
}
