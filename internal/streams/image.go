package streams

import (
	"fmt"
	"io"

	"github.com/deploymenttheory/go-fif/internal/cache"
	"github.com/deploymenttheory/go-fif/internal/properties"
	"github.com/deploymenttheory/go-fif/internal/volume"
	"github.com/deploymenttheory/go-fif/internal/zipio"
)

// DefaultChunkSize is used when a stream's own 'chunk_size' property is
// absent, matching the original format's Image default.
const DefaultChunkSize = 32 * 1024

// chunkIO is how an ImageStream's generic read/write/seek machinery
// actually gets bytes to and from the archive. Image stores raw deflated
// chunks directly; Encrypted wraps the same machinery with per-chunk AES.
type chunkIO interface {
	readChunk(chunkID int64) ([]byte, error)
	writeChunk(chunkID int64, data []byte) error
}

// ImageStream is the plain chunked stream: data is split into
// fixed-size chunks, each stored as its own DEFLATEd "<name>/%08d.dd"
// member (spec.md §4.6).
type ImageStream struct {
	vs   *volume.VolumeSet
	name string
	mode Mode

	props     *properties.Properties
	chunkSize int64
	size      int64
	readptr   int64

	chunkID     int64
	outstanding []byte

	io chunkIO

	// streamType is the 'type' property value written at Close; always
	// "Image" except when embedded by EncryptedStream.
	streamType string
	// beforeClose lets an embedding stream type (Encrypted) stamp extra
	// properties (scheme, salt) immediately before they are serialized.
	beforeClose func(props *properties.Properties)
}

func chunkName(streamName string, chunkID int64) string {
	return fmt.Sprintf("%s/%08d.dd", streamName, chunkID)
}

type plainChunkIO struct {
	vs    *volume.VolumeSet
	name  string
	cache *cache.ChunkCache
}

func (p *plainChunkIO) readChunk(chunkID int64) ([]byte, error) {
	name := chunkName(p.name, chunkID)
	if data, ok := p.cache.Get(name); ok {
		return data, nil
	}
	data, err := p.vs.ReadMember(name)
	if err != nil {
		return nil, err
	}
	p.cache.Put(name, data)
	return data, nil
}

func (p *plainChunkIO) writeChunk(chunkID int64, data []byte) error {
	return p.vs.WriteMember(chunkName(p.name, chunkID), data, zipio.Deflate)
}

// CreateImageStream begins a new writable Image stream named name.
func CreateImageStream(vs *volume.VolumeSet, name string, chunkSize int64) *ImageStream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	s := &ImageStream{
		vs:         vs,
		name:       name,
		mode:       ModeWrite,
		props:      properties.New(),
		chunkSize:  chunkSize,
		io:         &plainChunkIO{vs: vs, name: name, cache: cache.New(0)},
		streamType: "Image",
	}
	vs.RegisterWriter(s)
	return s
}

// OpenImageStream opens an existing Image stream for reading.
func OpenImageStream(vs *volume.VolumeSet, name string) (*ImageStream, error) {
	props, err := loadStreamProperties(vs, name)
	if err != nil {
		return nil, err
	}
	if err := requireStreamType(props, "Image"); err != nil {
		return nil, err
	}
	return &ImageStream{
		vs:         vs,
		name:       name,
		mode:       ModeRead,
		props:      props,
		chunkSize:  props.GetInt("chunk_size", DefaultChunkSize),
		size:       props.GetInt("size", 0),
		io:         &plainChunkIO{vs: vs, name: name, cache: cache.New(0)},
		streamType: "Image",
	}, nil
}

// Name returns the stream's member-name prefix.
func (s *ImageStream) Name() string { return s.name }

// Size returns the stream's total logical byte length.
func (s *ImageStream) Size() int64 { return s.size }

// Seek repositions the read pointer; only valid in read mode.
func (s *ImageStream) Seek(offset int64, whence int) (int64, error) {
	if s.mode != ModeRead {
		return 0, fmt.Errorf("streams: seek on stream %q open for writing", s.name)
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.readptr + offset
	case io.SeekEnd:
		pos = s.size + offset
	default:
		return 0, fmt.Errorf("streams: invalid whence %d", whence)
	}
	s.readptr = pos
	return s.readptr, nil
}

// Read implements io.Reader over the logical chunked stream.
func (s *ImageStream) Read(p []byte) (int, error) {
	if s.mode != ModeRead {
		return 0, fmt.Errorf("streams: read on stream %q open for writing", s.name)
	}
	want := int64(len(p))
	if remaining := s.size - s.readptr; want > remaining {
		want = remaining
	}
	if want <= 0 {
		return 0, io.EOF
	}
	var total int64
	for total < want {
		chunkID := s.readptr / s.chunkSize
		chunkOffset := s.readptr % s.chunkSize
		chunk, err := s.io.readChunk(chunkID)
		if err != nil {
			return int(total), err
		}
		if chunkOffset >= int64(len(chunk)) {
			break
		}
		n := copy(p[total:want], chunk[chunkOffset:])
		total += int64(n)
		s.readptr += int64(n)
	}
	if total == 0 {
		return 0, io.EOF
	}
	return int(total), nil
}

// Write implements io.Writer, buffering into chunkSize-aligned pieces and
// flushing each completed chunk immediately.
func (s *ImageStream) Write(p []byte) (int, error) {
	if s.mode != ModeWrite {
		return 0, fmt.Errorf("streams: write on stream %q open for reading", s.name)
	}
	s.readptr += int64(len(p))
	if s.readptr > s.size {
		s.size = s.readptr
	}
	s.outstanding = append(s.outstanding, p...)
	for int64(len(s.outstanding)) >= s.chunkSize {
		chunk := s.outstanding[:s.chunkSize]
		if err := s.io.writeChunk(s.chunkID, chunk); err != nil {
			return 0, err
		}
		s.chunkID++
		s.outstanding = s.outstanding[s.chunkSize:]
	}
	return len(p), nil
}

// WriteAll is a batch alternative to Write for when the whole stream's
// content is available up front: it DEFLATEs every chunk concurrently
// (bounded worker pool) before committing them to the volume in order,
// overlapping compression work that Write would otherwise do inline one
// chunk at a time. Only valid as the very first write to a fresh stream.
func (s *ImageStream) WriteAll(data []byte) error {
	if s.mode != ModeWrite {
		return fmt.Errorf("streams: write on stream %q open for reading", s.name)
	}
	if s.chunkID != 0 || len(s.outstanding) != 0 {
		return fmt.Errorf("streams: WriteAll requires a fresh stream %q with no prior writes", s.name)
	}
	plain, ok := s.io.(*plainChunkIO)
	if !ok {
		// Encrypted streams have their own per-chunk transform and do not
		// benefit from plain DEFLATE precompute; fall back to the
		// ordinary chunked path.
		_, err := s.Write(data)
		return err
	}

	chunks, err := compressChunksParallel(data, s.chunkSize)
	if err != nil {
		return err
	}
	for i, c := range chunks {
		name := chunkName(plain.name, int64(i))
		if err := s.vs.WriteCompressedMember(name, c.data, c.crc, c.uncompressedSize); err != nil {
			return err
		}
	}
	s.chunkID = int64(len(chunks))
	s.size = int64(len(data))
	s.readptr = s.size
	return nil
}

// Flush writes the stream's properties member without finalizing any
// pending partial chunk. VolumeSet.Close calls it for every stream still
// registered as a writer; CreateNewVolume and AppendVolume do not call it.
func (s *ImageStream) Flush() error {
	if s.mode != ModeWrite {
		return nil
	}
	return s.writeProperties()
}

func (s *ImageStream) writeProperties() error {
	s.props.SetInt("chunk_size", s.chunkSize)
	s.props.SetInt("count", s.chunkID)
	if s.beforeClose != nil {
		s.beforeClose(s.props)
	}
	return writeStreamProperties(s.vs, s.name, s.streamType, s.size, s.props)
}

// Close flushes any partial final chunk and writes the stream's
// properties member.
func (s *ImageStream) Close() error {
	if s.mode != ModeWrite {
		return nil
	}
	if len(s.outstanding) > 0 {
		if err := s.io.writeChunk(s.chunkID, s.outstanding); err != nil {
			return err
		}
		s.chunkID++
		s.outstanding = nil
	}
	s.vs.UnregisterWriter(s)
	return s.writeProperties()
}
