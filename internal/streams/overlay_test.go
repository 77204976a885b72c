package streams

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fif/internal/volume"
)

func TestOverlayStreamReferencesExternalFile(t *testing.T) {
	dir := t.TempDir()
	extPath := filepath.Join(dir, "external.raw")
	external := []byte("AAAABBBBCCCCDDDD")
	require.NoError(t, os.WriteFile(extPath, external, 0o644))

	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w := CreateOverlayStream(vs, "data")
	w.SetChunkSize(4)
	w.SetChunk(0, 0, 4, OverlayStored, extPath)
	w.SetChunk(1, 4, 4, OverlayStored, extPath)
	w.SetChunk(2, 8, 4, OverlayStored, extPath)
	w.SetChunk(3, 12, 4, OverlayStored, extPath)
	w.SetSize(int64(len(external)))
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenOverlayStream(vs2, "data")
	require.NoError(t, err)
	assert.EqualValues(t, len(external), r.Size())

	got := make([]byte, len(external))
	n, err := r.Read(got)
	require.NoError(t, err)
	assert.Equal(t, external, got[:n])
}
