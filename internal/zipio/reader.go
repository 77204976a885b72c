package zipio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
)

const maxEOCDSearch = 22 + 65535

// ReadCentralDirectory locates and parses the Central Directory (plus its
// Zip64 extension, if present) of a volume of the given total size.
func ReadCentralDirectory(r io.ReaderAt, size int64) ([]CDEntry, error) {
	eocdOff, entryCountHint, cdSize, cdStart, err := findEOCD(r, size)
	if err != nil {
		return nil, err
	}

	if entryCountHint == zip16Max || cdSize == zip32Max || cdStart == zip32Max {
		cdStart, cdSize, entryCountHint, err = readZip64EOCD(r, eocdOff)
		if err != nil {
			return nil, err
		}
	}

	buf := make([]byte, cdSize)
	if _, err := r.ReadAt(buf, int64(cdStart)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("zipio: reading central directory: %w", err)
	}

	entries := make([]CDEntry, 0, entryCountHint)
	pos := 0
	for pos < len(buf) {
		e, consumed, err := parseCDEntry(buf[pos:])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		pos += consumed
	}
	return entries, nil
}

// FindCentralDirectoryStart returns the byte offset a volume's Central
// Directory begins at. append_volume reuses it as the position to resume
// streaming new members from, so the old CD is naturally overwritten by
// the rewritten one at the next Finalize.
func FindCentralDirectoryStart(r io.ReaderAt, size int64) (uint64, error) {
	eocdOff, entryCountHint, cdSize, cdStart32, err := findEOCD(r, size)
	if err != nil {
		return 0, err
	}
	if entryCountHint == zip16Max || cdSize == zip32Max || cdStart32 == zip32Max {
		cdStart64, _, _, err := readZip64EOCD(r, eocdOff)
		if err != nil {
			return 0, err
		}
		return cdStart64, nil
	}
	return uint64(cdStart32), nil
}

// findEOCD scans backward from the end of the volume for the standard
// End Of Central Directory signature and returns its file offset plus
// the (possibly zip64-sentinel) entry count, CD size, and CD start it
// carries.
func findEOCD(r io.ReaderAt, size int64) (eocdOff int64, entryCount uint16, cdSize, cdStart uint32, err error) {
	searchLen := int64(maxEOCDSearch)
	if searchLen > size {
		searchLen = size
	}
	buf := make([]byte, searchLen)
	if _, err := r.ReadAt(buf, size-searchLen); err != nil && err != io.EOF {
		return 0, 0, 0, 0, fmt.Errorf("zipio: reading EOCD search window: %w", err)
	}

	for i := len(buf) - 22; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) == sigEOCD {
			rec := buf[i:]
			entryCount = binary.LittleEndian.Uint16(rec[10:12])
			cdSize = binary.LittleEndian.Uint32(rec[12:16])
			cdStart = binary.LittleEndian.Uint32(rec[16:20])
			return size - searchLen + int64(i), entryCount, cdSize, cdStart, nil
		}
	}
	return 0, 0, 0, 0, fmt.Errorf("zipio: no end-of-central-directory record found: %w", fiferr.ErrIntegrity)
}

func readZip64EOCD(r io.ReaderAt, eocdOff int64) (cdStart uint64, cdSize uint64, entryCount uint64, err error) {
	locOff := eocdOff - 20
	if locOff < 0 {
		return 0, 0, 0, fmt.Errorf("zipio: zip64 locator out of range: %w", fiferr.ErrIntegrity)
	}
	loc := make([]byte, 20)
	if _, err := r.ReadAt(loc, locOff); err != nil {
		return 0, 0, 0, fmt.Errorf("zipio: reading zip64 EOCD locator: %w", err)
	}
	if binary.LittleEndian.Uint32(loc[0:4]) != sigZip64EOCDLocator {
		return 0, 0, 0, fmt.Errorf("zipio: missing zip64 EOCD locator: %w", fiferr.ErrIntegrity)
	}
	zip64Off := binary.LittleEndian.Uint64(loc[8:16])

	rec := make([]byte, 56)
	if _, err := r.ReadAt(rec, int64(zip64Off)); err != nil {
		return 0, 0, 0, fmt.Errorf("zipio: reading zip64 EOCD record: %w", err)
	}
	if binary.LittleEndian.Uint32(rec[0:4]) != sigZip64EOCD {
		return 0, 0, 0, fmt.Errorf("zipio: bad zip64 EOCD signature: %w", fiferr.ErrIntegrity)
	}
	entryCount = binary.LittleEndian.Uint64(rec[32:40])
	cdSize = binary.LittleEndian.Uint64(rec[40:48])
	cdStart = binary.LittleEndian.Uint64(rec[48:56])
	return cdStart, cdSize, entryCount, nil
}

func parseCDEntry(buf []byte) (CDEntry, int, error) {
	if len(buf) < 46 {
		return CDEntry{}, 0, fmt.Errorf("zipio: truncated central directory entry: %w", fiferr.ErrIntegrity)
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != sigCentralDirEntry {
		return CDEntry{}, 0, fmt.Errorf("zipio: bad central directory entry signature: %w", fiferr.ErrIntegrity)
	}

	method := Compression(binary.LittleEndian.Uint16(buf[10:12]))
	dostime := binary.LittleEndian.Uint16(buf[12:14])
	date := binary.LittleEndian.Uint16(buf[14:16])
	crc32 := binary.LittleEndian.Uint32(buf[16:20])
	compSize := uint64(binary.LittleEndian.Uint32(buf[20:24]))
	uncompSize := uint64(binary.LittleEndian.Uint32(buf[24:28]))
	nameLen := int(binary.LittleEndian.Uint16(buf[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(buf[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(buf[32:34]))
	headerOffset := uint64(binary.LittleEndian.Uint32(buf[42:46]))

	total := 46 + nameLen + extraLen + commentLen
	if len(buf) < total {
		return CDEntry{}, 0, fmt.Errorf("zipio: truncated central directory entry body: %w", fiferr.ErrIntegrity)
	}
	name := string(buf[46 : 46+nameLen])
	extra := buf[46+nameLen : 46+nameLen+extraLen]

	compSize, uncompSize, headerOffset = applyZip64Extra(extra, compSize, uncompSize, headerOffset)

	return CDEntry{
		Name:             name,
		Method:           method,
		CRC32:            crc32,
		CompressedSize:   compSize,
		UncompressedSize: uncompSize,
		HeaderOffset:     headerOffset,
		DataOffset:       headerOffset + uint64(LocalFileHeaderSize(name)),
		DateTime:         uint32(date)<<16 | uint32(dostime),
	}, total, nil
}

// applyZip64Extra overrides any fixed-width field that was stored as the
// zip64 sentinel (0xFFFFFFFF) with its true value from the zip64 extra
// record, in the fixed order the format mandates: uncompressed size,
// compressed size, header offset.
func applyZip64Extra(extra []byte, compSize, uncompSize, headerOffset uint64) (uint64, uint64, uint64) {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+size {
			break
		}
		body := extra[4 : 4+size]
		if id == zip64ExtraID {
			pos := 0
			if uncompSize == zip32Max && pos+8 <= len(body) {
				uncompSize = binary.LittleEndian.Uint64(body[pos : pos+8])
				pos += 8
			}
			if compSize == zip32Max && pos+8 <= len(body) {
				compSize = binary.LittleEndian.Uint64(body[pos : pos+8])
				pos += 8
			}
			if headerOffset == zip32Max && pos+8 <= len(body) {
				headerOffset = binary.LittleEndian.Uint64(body[pos : pos+8])
				pos += 8
			}
		}
		extra = extra[4+size:]
	}
	return compSize, uncompSize, headerOffset
}

// LocalFileHeaderSize returns the byte length of the Local File Header
// FIF writes for a member with the given name (FIF never emits an extra
// field on the LFH itself — see buildStreamingLocalFileHeader).
func LocalFileHeaderSize(name string) int {
	return localFileHeaderFixedSize + len(name)
}
