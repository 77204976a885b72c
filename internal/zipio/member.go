package zipio

import (
	"fmt"
	"io"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
)

// MemberReader is a seekable, read-only view over a contiguous byte range
// of a backing volume — one Stored (never Deflate) member. Spec.md §4.3
// forbids opening a compressed member this way; attempts fail with
// ErrUnsupportedOperation at construction time.
type MemberReader struct {
	backing    io.ReaderAt
	dataOffset int64
	size       int64
	readptr    int64
}

// NewMemberReader constructs a MemberReader over entry within backing. It
// rejects Deflate members per spec.md §4.3/§4.5.
func NewMemberReader(backing io.ReaderAt, entry CDEntry) (*MemberReader, error) {
	if entry.Method == Deflate {
		return nil, fmt.Errorf("zipio: cannot open compressed member %q for random access: %w", entry.Name, fiferr.ErrUnsupportedOperation)
	}
	return &MemberReader{
		backing:    backing,
		dataOffset: int64(entry.DataOffset),
		size:       int64(entry.CompressedSize),
	}, nil
}

// Read implements io.Reader: reads up to min(len(p), size-readptr) bytes.
func (m *MemberReader) Read(p []byte) (int, error) {
	if m.readptr >= m.size {
		return 0, io.EOF
	}
	max := m.size - m.readptr
	if int64(len(p)) > max {
		p = p[:max]
	}
	n, err := m.backing.ReadAt(p, m.dataOffset+m.readptr)
	m.readptr += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek implements io.Seeker.
func (m *MemberReader) Seek(offset int64, whence int) (int64, error) {
	var newPtr int64
	switch whence {
	case io.SeekStart:
		newPtr = offset
	case io.SeekCurrent:
		newPtr = m.readptr + offset
	case io.SeekEnd:
		newPtr = m.size + offset
	default:
		return 0, fmt.Errorf("zipio: invalid whence %d", whence)
	}
	if newPtr < 0 {
		return 0, fmt.Errorf("zipio: negative seek position")
	}
	m.readptr = newPtr
	return m.readptr, nil
}

// Size returns the member's byte length.
func (m *MemberReader) Size() int64 { return m.size }

// Tell returns the current read position.
func (m *MemberReader) Tell() int64 { return m.readptr }
