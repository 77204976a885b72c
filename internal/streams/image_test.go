package streams

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fif/internal/volume"
)

func TestImageStreamWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w := CreateImageStream(vs, "data", 8)
	payload := []byte("0123456789abcdefghij") // spans several 8-byte chunks
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenImageStream(vs2, "data")
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), r.Size())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestImageStreamWriteAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w := CreateImageStream(vs, "data", 4)
	payload := []byte("AAAABBBBCCCCDDDDE") // 17 bytes: four full chunks + one partial
	require.NoError(t, w.WriteAll(payload))
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenImageStream(vs2, "data")
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), r.Size())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestImageStreamSeek(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w := CreateImageStream(vs, "data", 4)
	_, err = w.Write([]byte("AAAABBBBCCCCDDDD"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenImageStream(vs2, "data")
	require.NoError(t, err)

	_, err = r.Seek(8, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "CCCC", string(buf[:n]))
}
