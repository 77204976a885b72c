package streams

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fif/internal/volume"
)

func TestMapStreamLinearRemap(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	target := CreateImageStream(vs, "data", 8)
	payload := []byte("0123456789ABCDEF") // 16 bytes
	_, err = target.Write(payload)
	require.NoError(t, err)
	require.NoError(t, target.Close())

	m := CreateMapStream(vs, "remap", []string{"data"})
	m.AddPoint(0, 8, 0)  // file offset 0 maps to image offset 8
	m.AddPoint(8, 0, 0)  // file offset 8 maps back to image offset 0
	m.SetSize(16)
	require.NoError(t, m.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenMapStream(vs2, "remap")
	require.NoError(t, err)
	assert.EqualValues(t, 16, r.Size())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	// file [0,8) <- image [8,16) = "89ABCDEF"; file [8,16) <- image [0,8) = "01234567"
	assert.Equal(t, "89ABCDEF01234567", string(got))
}

func TestMapStreamPeriodicWraparound(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	target := CreateImageStream(vs, "data", 8)
	payload := []byte("0123456789ABCDEF") // 16 bytes
	_, err = target.Write(payload)
	require.NoError(t, err)
	require.NoError(t, target.Close())

	// One period's worth of points: swap the two 8-byte halves, exactly as
	// TestMapStreamLinearRemap does, but this time the 16-byte pattern
	// repeats every file_period bytes with image_period 0, so every period
	// re-reads the same 16 underlying bytes (scenario 3 / P6).
	m := CreateMapStream(vs, "remap", []string{"data"})
	m.AddPoint(0, 8, 0)
	m.AddPoint(8, 0, 0)
	m.SetPeriod(16, 0)
	m.SetSize(48) // 3 periods
	require.NoError(t, m.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenMapStream(vs2, "remap")
	require.NoError(t, err)
	assert.EqualValues(t, 48, r.Size())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	want := "89ABCDEF01234567" + "89ABCDEF01234567" + "89ABCDEF01234567"
	assert.Equal(t, want, string(got))
}

func newBareMapStream() *MapStream {
	return &MapStream{mapping: make(map[int64]int64), target: make(map[int64]int)}
}

func TestMapStreamPackKeepsFirstPointOnSingletonMap(t *testing.T) {
	m := newBareMapStream()
	m.AddPoint(42, 100, 0)
	m.Pack()
	require.Len(t, m.points, 1)
	assert.Equal(t, int64(42), m.points[0])
}

func TestMapStreamPackDropsRedundantLinearPoints(t *testing.T) {
	m := newBareMapStream()
	m.AddPoint(0, 0, 0)
	m.AddPoint(10, 10, 0)  // still on the same line as (0,0)
	m.AddPoint(20, 100, 0) // discontinuity
	m.Pack()
	require.Equal(t, []int64{0, 20}, m.points)
}
