package zipio

import (
	"compress/flate"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
)

// Backing is the minimal capability a volume file must offer a Writer:
// positioned writes for appending members, and positioned reads so a
// just-finalized member can be handed back out for immediate reading
// (spec.md §9's "streaming variant... supports concurrent readers within
// the same volume").
type Backing interface {
	io.ReaderAt
	io.WriterAt
}

// Writer manages append-only writes into a single open volume. It holds
// the volume's single write lock (spec.md §5: "at most one write lock,
// keyed by the member name currently open for streaming write").
type Writer struct {
	backing Backing
	offset  uint64
	locked  string
	entries []CDEntry
}

// NewWriter returns a Writer that will append new members starting at
// startOffset (the position where any existing Central Directory began,
// for append_volume reuse, or 0 for a fresh volume).
func NewWriter(backing Backing, startOffset uint64) *Writer {
	return &Writer{backing: backing, offset: startOffset}
}

// Offset returns the current append position.
func (w *Writer) Offset() uint64 { return w.offset }

// SeedEntries preloads entries already present in the volume being
// resumed (append_volume), so Finalize regenerates a Central Directory
// covering both the old members and whatever is appended in this
// session.
func (w *Writer) SeedEntries(entries []CDEntry) {
	w.entries = append(w.entries, entries...)
}

// Locked reports the name of the member currently locked for writing, or
// "" if none.
func (w *Writer) Locked() string { return w.locked }

func (w *Writer) appendBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := w.backing.WriteAt(p, int64(w.offset)); err != nil {
		return fmt.Errorf("zipio: writing at offset %d: %w", w.offset, err)
	}
	w.offset += uint64(len(p))
	return nil
}

// OpenMember acquires the write lock, emits a streaming Local File Header
// (flag bit 3 set, sizes zeroed), and returns a MemberWriter. Only one
// member may be open for writing at a time (spec.md I2); a second
// concurrent call fails with ErrLocked.
func (w *Writer) OpenMember(name string, method Compression, modTime time.Time) (*MemberWriter, error) {
	if w.locked != "" {
		return nil, fmt.Errorf("zipio: member %q is currently open for writing: %w", w.locked, fiferr.ErrLocked)
	}

	headerOffset := w.offset
	date, dostime := PackDOSTime(modTime)
	header := buildStreamingLocalFileHeader(name, method, date, dostime)
	if err := w.appendBytes(header); err != nil {
		return nil, err
	}
	w.locked = name

	mw := &MemberWriter{
		parent:       w,
		name:         name,
		method:       method,
		headerOffset: headerOffset,
		dataOffset:   w.offset,
		dateTime:     uint32(date)<<16 | uint32(dostime),
	}
	if method == Deflate {
		mw.flateW = flate.NewWriter(&memberAppender{mw: mw}, flate.DefaultCompression)
	}
	return mw, nil
}

// WriteStr is the whole-buffer convenience form: open, write, close.
// Per the teacher's design note (SPEC_FULL.md §9(c)), this is implemented
// in terms of the streaming variant rather than a distinct code path.
func (w *Writer) WriteStr(name string, data []byte, method Compression, modTime time.Time) (CDEntry, error) {
	mw, err := w.OpenMember(name, method, modTime)
	if err != nil {
		return CDEntry{}, err
	}
	if _, err := mw.Write(data); err != nil {
		return CDEntry{}, err
	}
	return mw.Close()
}

// WriteCompressedStr writes a member whose DEFLATE bytes have already
// been computed by the caller (e.g. a pool of goroutines compressing
// several chunks concurrently ahead of this call). Unlike WriteStr, the
// payload is appended verbatim rather than re-run through flate.Writer —
// the caller is responsible for compressed having come from a standard
// DEFLATE encoder and crc/uncompressedSize matching the original bytes.
func (w *Writer) WriteCompressedStr(name string, compressed []byte, crc uint32, uncompressedSize uint64, modTime time.Time) (CDEntry, error) {
	mw, err := w.OpenMember(name, Deflate, modTime)
	if err != nil {
		return CDEntry{}, err
	}
	mw.flateW = nil // bypass re-compression; we're appending pre-compressed bytes
	app := &memberAppender{mw: mw}
	if _, err := app.Write(compressed); err != nil {
		return CDEntry{}, err
	}
	mw.crc = crc
	mw.uncompSize = uncompressedSize
	return mw.Close()
}

// Finalize writes the Central Directory (and, if needed, its Zip64
// extension) at the current append position and returns the resulting
// total volume size. The Writer must have no member open for writing.
func (w *Writer) Finalize() (uint64, error) {
	if w.locked != "" {
		return 0, fmt.Errorf("zipio: cannot finalize while %q is open for writing: %w", w.locked, fiferr.ErrLocked)
	}
	cd := WriteCentralDirectory(w.entries, w.offset)
	if err := w.appendBytes(cd); err != nil {
		return 0, err
	}
	return w.offset, nil
}

// Entries returns the CD entries written so far in this session.
func (w *Writer) Entries() []CDEntry {
	return w.entries
}

// MemberWriter is a write-mode handle to a single streaming member.
// Writes are not seekable (spec.md §4.5: "Seek in a compressed writable
// stream fails with UnsupportedOperation" — FIF never seeks any writer).
type MemberWriter struct {
	parent       *Writer
	name         string
	method       Compression
	headerOffset uint64
	dataOffset   uint64
	dateTime     uint32

	crc        uint32
	uncompSize uint64
	compSize   uint64

	flateW *flate.Writer
	closed bool
}

type memberAppender struct {
	mw *MemberWriter
}

func (a *memberAppender) Write(p []byte) (int, error) {
	if err := a.mw.parent.appendBytes(p); err != nil {
		return 0, err
	}
	a.mw.compSize += uint64(len(p))
	return len(p), nil
}

// Write appends data to the member, updating the running CRC-32 and
// size counters, compressing through DEFLATE if the member uses it.
func (mw *MemberWriter) Write(data []byte) (int, error) {
	if mw.closed {
		return 0, fmt.Errorf("zipio: write to closed member %q", mw.name)
	}
	mw.crc = crc32.Update(mw.crc, crc32.IEEETable, data)
	mw.uncompSize += uint64(len(data))

	if mw.flateW != nil {
		if _, err := mw.flateW.Write(data); err != nil {
			return 0, fmt.Errorf("zipio: deflating member %q: %w", mw.name, err)
		}
		return len(data), nil
	}

	app := &memberAppender{mw: mw}
	if _, err := app.Write(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close flushes any pending compressed output, emits the trailing data
// descriptor, and appends the finished entry to the parent Writer's
// pending Central Directory, releasing the write lock.
func (mw *MemberWriter) Close() (CDEntry, error) {
	if mw.closed {
		return CDEntry{}, fmt.Errorf("zipio: member %q already closed", mw.name)
	}
	mw.closed = true

	if mw.flateW != nil {
		if err := mw.flateW.Close(); err != nil {
			return CDEntry{}, fmt.Errorf("zipio: closing deflate stream for %q: %w", mw.name, err)
		}
	}

	if err := mw.parent.appendBytes(dataDescriptorBytes(mw.crc, mw.compSize, mw.uncompSize)); err != nil {
		return CDEntry{}, err
	}

	entry := CDEntry{
		Name:             mw.name,
		Method:           mw.method,
		CRC32:            mw.crc,
		CompressedSize:   mw.compSize,
		UncompressedSize: mw.uncompSize,
		HeaderOffset:     mw.headerOffset,
		DataOffset:       mw.dataOffset,
		DateTime:         mw.dateTime,
	}
	mw.parent.entries = appendOrReplaceEntry(mw.parent.entries, entry)
	mw.parent.locked = ""
	return entry, nil
}

func appendOrReplaceEntry(entries []CDEntry, e CDEntry) []CDEntry {
	for i, existing := range entries {
		if existing.Name == e.Name {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}
