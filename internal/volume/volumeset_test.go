package volume

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
	"github.com/deploymenttheory/go-fif/internal/zipio"
)

func TestCreateWriteCloseReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.fif")

	vs, err := Create(path, 0)
	require.NoError(t, err)
	require.NotEmpty(t, vs.UUID())

	require.NoError(t, vs.WriteMember("data/00000000.dd", []byte("hello world"), zipio.Stored))
	require.NoError(t, vs.Close())

	reopened, err := Open([]string{path}, 0)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, vs.UUID(), reopened.UUID())
	data, err := reopened.ReadMember("data/00000000.dd")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDeleteMemberTombstonesEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.fif")

	vs, err := Create(path, 0)
	require.NoError(t, err)
	require.NoError(t, vs.WriteMember("foo", []byte("bar"), zipio.Stored))
	require.NoError(t, vs.DeleteMember("foo"))
	require.NoError(t, vs.Close())

	reopened, err := Open([]string{path}, 0)
	require.NoError(t, err)
	defer reopened.Close()

	assert.False(t, reopened.HasMember("foo"))
	_, err = reopened.ReadMember("foo")
	assert.Error(t, err)
}

func TestOverrideRuleKeepsLaterDateTime(t *testing.T) {
	vol := &Volume{Name: "file://a"}
	index := make(map[string]location)

	older := zipio.CDEntry{Name: "x", DateTime: 100}
	newer := zipio.CDEntry{Name: "x", DateTime: 200}

	applyEntry(index, vol, older)
	applyEntry(index, vol, newer)
	assert.Equal(t, uint32(200), index["x"].entry.DateTime)

	// A tie does not keep the stale entry: incoming wins unless the
	// existing entry's DateTime is strictly greater.
	tie := zipio.CDEntry{Name: "x", DateTime: 200, CRC32: 7}
	applyEntry(index, vol, tie)
	assert.Equal(t, uint32(7), index["x"].entry.CRC32)

	// A strictly older incoming entry never displaces the existing one.
	stale := zipio.CDEntry{Name: "x", DateTime: 50, CRC32: 99}
	applyEntry(index, vol, stale)
	assert.Equal(t, uint32(7), index["x"].entry.CRC32)
}

func TestAppendVolumeResumesWritingExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.fif")

	vs, err := Create(path, 0)
	require.NoError(t, err)
	require.NoError(t, vs.WriteMember("first", []byte("1"), zipio.Stored))
	require.NoError(t, vs.Close())

	vs2, err := Open([]string{path}, 0)
	require.NoError(t, err)
	require.NoError(t, vs2.AppendVolume(volumeNameForPath(path)))
	require.NoError(t, vs2.WriteMember("second", []byte("2"), zipio.Stored))
	require.NoError(t, vs2.Close())

	vs3, err := Open([]string{path}, 0)
	require.NoError(t, err)
	defer vs3.Close()

	a, err := vs3.ReadMember("first")
	require.NoError(t, err)
	assert.Equal(t, "1", string(a))
	b, err := vs3.ReadMember("second")
	require.NoError(t, err)
	assert.Equal(t, "2", string(b))
}

func TestMultiVolumeUUIDMismatchIsIntegrityError(t *testing.T) {
	dir := t.TempDir()

	a, err := Create(filepath.Join(dir, "a.fif"), 0)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := Create(filepath.Join(dir, "b.fif"), 0)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = Open([]string{filepath.Join(dir, "a.fif"), filepath.Join(dir, "b.fif")}, 0)
	require.ErrorIs(t, err, fiferr.ErrIntegrity)
}

type countingFlusher struct{ n int }

func (c *countingFlusher) Flush() error {
	c.n++
	return nil
}

func TestCloseFlushesRegisteredWriters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.fif")

	vs, err := Create(path, 0)
	require.NoError(t, err)
	cf := &countingFlusher{}
	vs.RegisterWriter(cf)
	require.NoError(t, vs.Close())
	assert.Equal(t, 1, cf.n)
}
