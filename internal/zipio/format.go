// Package zipio implements the minimal ZIP64 reader/writer subset FIF
// relies on: Local File Headers, deflate/stored members, streaming
// members with trailing data descriptors, and whole-file Central
// Directory rewrite on close. It intentionally does not support the
// full richness of archive/zip (multi-disk archives, arbitrary extra
// fields, comments) — only what spec.md's ZipCodec component needs.
package zipio

// Compression identifies a member's storage method.
type Compression uint16

const (
	// Stored members are copied byte-for-byte with no transformation.
	Stored Compression = 0
	// Deflate members are raw DEFLATE (no zlib wrapper), per spec.md §4.3.
	Deflate Compression = 8
)

const (
	sigLocalFileHeader  = 0x04034b50
	sigCentralDirEntry  = 0x02014b50
	sigEOCD             = 0x06054b50
	sigZip64EOCD        = 0x06064b50
	sigZip64EOCDLocator = 0x07064b50

	zip64ExtraID = 0x0001

	// flagDataDescriptor is general-purpose bit 3: sizes/CRC are zero in
	// the Local File Header and follow the payload in a trailing
	// descriptor instead.
	flagDataDescriptor = 0x0008

	versionNeededZip64 = 45
	versionMadeBy       = 45

	// thresholds beyond which a field must be promoted into the zip64
	// extra record instead of the fixed-width field.
	zip32Max = 0xFFFFFFFF
	zip16Max = 0xFFFF
)
