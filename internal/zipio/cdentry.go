package zipio

// CDEntry is one Central Directory record: either freshly written by this
// process, or parsed back out of an existing volume's trailer.
type CDEntry struct {
	Name             string
	Method           Compression
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	// HeaderOffset is the byte offset of the member's Local File Header
	// within its backing volume.
	HeaderOffset uint64
	// DataOffset is HeaderOffset plus the size of that member's Local
	// File Header — i.e. where the payload actually begins.
	DataOffset uint64
	// DateTime is the packed last-modified timestamp (see PackedDateTime),
	// the field the consolidated index's override rule compares.
	DateTime uint32
}

// IsTombstone reports whether the entry signals a logical deletion: both
// compressed and uncompressed size are zero (spec.md §3).
func (e CDEntry) IsTombstone() bool {
	return e.CompressedSize == 0 && e.UncompressedSize == 0
}

func needsZip64(e CDEntry) bool {
	return e.CompressedSize > zip32Max || e.UncompressedSize > zip32Max || e.HeaderOffset > zip32Max
}
