package properties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	text := "UUID=abc-123\nversion=FIF 1.0\nvolume=file://a.zip\nvolume=file://b.zip\n"
	p, skipped := Parse(text)
	require.Equal(t, 0, skipped)

	assert.Equal(t, "abc-123", p.Get("uuid", ""))
	assert.Equal(t, "FIF 1.0", p.Get("version", ""))
	assert.Equal(t, []string{"file://a.zip", "file://b.zip"}, p.GetArray("volume"))
}

func TestParseSkipsLinesWithoutEquals(t *testing.T) {
	text := "UUID=abc\nnotaproperty\nversion=1\n"
	p, skipped := Parse(text)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "abc", p.Get("uuid", ""))
	assert.Equal(t, "1", p.Get("version", ""))
}

func TestKeysCaseInsensitive(t *testing.T) {
	p := New()
	p.Set("UUID", "1")
	assert.Equal(t, "1", p.Get("uuid", "default"))
	assert.Equal(t, "1", p.Get("UUID", "default"))
	assert.Equal(t, "1", p.Get("Uuid", "default"))
}

func TestAppendDeduplicates(t *testing.T) {
	p := New()
	p.Append("volume", "file://a.zip")
	p.Append("volume", "file://a.zip")
	p.Append("volume", "file://b.zip")
	assert.Equal(t, []string{"file://a.zip", "file://b.zip"}, p.GetArray("volume"))
}

func TestSetReplacesAllValues(t *testing.T) {
	p := New()
	p.Append("target", "s0")
	p.Append("target", "s1")
	p.Set("target", "only")
	assert.Equal(t, []string{"only"}, p.GetArray("target"))
}

func TestUpdateAppendsNonDuplicates(t *testing.T) {
	a := New()
	a.Append("volume", "file://a.zip")

	b := New()
	b.Append("volume", "file://a.zip")
	b.Append("volume", "file://b.zip")

	a.Update(b)
	assert.Equal(t, []string{"file://a.zip", "file://b.zip"}, a.GetArray("volume"))
}

func TestStringSerializationPreservesOrder(t *testing.T) {
	p := New()
	p.Set("UUID", "1234")
	p.Append("volume", "file://a.zip")
	p.Append("volume", "file://b.zip")

	out := p.String()
	assert.Equal(t, "UUID=1234\nvolume=file://a.zip\nvolume=file://b.zip\n", out)
}

func TestGetIntDefaultsOnMissingOrBad(t *testing.T) {
	p := New()
	p.Set("chunk_size", "not-a-number")
	assert.Equal(t, int64(32768), p.GetInt("chunk_size", 32768))
	assert.Equal(t, int64(99), p.GetInt("missing", 99))

	p.SetInt("count", 42)
	assert.Equal(t, int64(42), p.GetInt("count", 0))
}

func TestDelete(t *testing.T) {
	p := New()
	p.Set("PSK", "hunter2")
	p.Delete("PSK")
	assert.False(t, p.Has("PSK"))
	assert.Equal(t, "", p.Get("PSK", ""))
}

func TestMustGetMissing(t *testing.T) {
	p := New()
	_, err := p.MustGet("UUID")
	require.Error(t, err)
}
