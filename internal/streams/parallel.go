package streams

import (
	"bytes"
	"compress/flate"
	"fmt"
	"hash/crc32"

	"github.com/sourcegraph/conc/pool"
)

// maxParallelCompressors bounds how many chunks are deflated concurrently
// for a single WriteAll call; the volume's single-writer model still
// serializes the actual appends, so this only overlaps CPU-bound
// compression work ahead of that append point.
const maxParallelCompressors = 4

// compressedChunk is one chunk's DEFLATE payload plus the bookkeeping its
// eventual CD entry needs, computed off the single-writer append path.
type compressedChunk struct {
	data             []byte
	crc              uint32
	uncompressedSize int64
}

// deflateChunk runs a single DEFLATE pass over data, matching exactly
// what zipio.Writer.WriteStr would have produced inline.
func deflateChunk(data []byte) (compressedChunk, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return compressedChunk{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return compressedChunk{}, err
	}
	if err := fw.Close(); err != nil {
		return compressedChunk{}, err
	}
	return compressedChunk{
		data:             buf.Bytes(),
		crc:              crc32.ChecksumIEEE(data),
		uncompressedSize: int64(len(data)),
	}, nil
}

// compressChunksParallel splits data into chunkSize-aligned pieces and
// DEFLATEs them concurrently across a bounded worker pool, returning the
// results in chunk order.
func compressChunksParallel(data []byte, chunkSize int64) ([]compressedChunk, error) {
	var pieces [][]byte
	for off := int64(0); off < int64(len(data)); off += chunkSize {
		end := off + chunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		pieces = append(pieces, data[off:end])
	}

	results := make([]compressedChunk, len(pieces))
	p := pool.New().WithMaxGoroutines(maxParallelCompressors).WithErrors()
	for i, piece := range pieces {
		i, piece := i, piece
		p.Go(func() error {
			out, err := deflateChunk(piece)
			if err != nil {
				return fmt.Errorf("streams: compressing chunk %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
