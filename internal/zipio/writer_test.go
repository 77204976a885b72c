package zipio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStrStoredRoundTrip(t *testing.T) {
	b := &memBacking{}
	w := NewWriter(b, 0)

	entry, err := w.WriteStr("properties", []byte("UUID=abc\n"), Stored, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, uint64(len("UUID=abc\n")), entry.UncompressedSize)
	assert.Equal(t, entry.UncompressedSize, entry.CompressedSize)

	total, err := w.Finalize()
	require.NoError(t, err)
	assert.EqualValues(t, b.Size(), total)

	entries, err := ReadCentralDirectory(b, b.Size())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "properties", entries[0].Name)
	assert.Equal(t, entry.CRC32, entries[0].CRC32)
	assert.Equal(t, entry.DataOffset, entries[0].DataOffset)

	mr, err := NewMemberReader(b, entries[0])
	require.NoError(t, err)
	data := make([]byte, entries[0].CompressedSize)
	n, err := mr.Read(data)
	require.NoError(t, err)
	assert.Equal(t, "UUID=abc\n", string(data[:n]))
}

func TestWriteStrDeflateRoundTripViaFlate(t *testing.T) {
	b := &memBacking{}
	w := NewWriter(b, 0)
	payload := []byte("Hello, World! Hello, World! Hello, World!")

	entry, err := w.WriteStr("data/00000000.dd", payload, Deflate, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), entry.UncompressedSize)
	assert.Less(t, entry.CompressedSize, entry.UncompressedSize)

	_, err = w.Finalize()
	require.NoError(t, err)

	entries, err := ReadCentralDirectory(b, b.Size())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Deflate, entries[0].Method)

	// Deflate members cannot be opened for random access.
	_, err = NewMemberReader(b, entries[0])
	require.Error(t, err)
}

func TestLockPreventsSecondOpenMember(t *testing.T) {
	b := &memBacking{}
	w := NewWriter(b, 0)

	mw, err := w.OpenMember("a", Stored, time.Now())
	require.NoError(t, err)

	_, err = w.OpenMember("b", Stored, time.Now())
	require.Error(t, err)

	_, err = mw.Close()
	require.NoError(t, err)

	_, err = w.OpenMember("b", Stored, time.Now())
	require.NoError(t, err)
}

func TestMultipleMembersAndFinalize(t *testing.T) {
	b := &memBacking{}
	w := NewWriter(b, 0)

	names := []string{"properties", "data/00000000.dd", "data/00000001.dd"}
	for _, n := range names {
		_, err := w.WriteStr(n, []byte("chunk-"+n), Stored, time.Now())
		require.NoError(t, err)
	}

	_, err := w.Finalize()
	require.NoError(t, err)

	entries, err := ReadCentralDirectory(b, b.Size())
	require.NoError(t, err)
	require.Len(t, entries, len(names))

	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Name] = true
	}
	for _, n := range names {
		assert.True(t, seen[n], "missing entry %s", n)
	}
}

func TestTombstoneEntryHasZeroSizes(t *testing.T) {
	b := &memBacking{}
	w := NewWriter(b, 0)
	entry, err := w.WriteStr("deleted-member", nil, Stored, time.Now())
	require.NoError(t, err)
	assert.True(t, entry.IsTombstone())
}
