package streams

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fif/internal/volume"
)

func TestEncryptedStreamAESRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w, err := CreateEncryptedStream(vs, "crypt", "aes-sha-psk", "correct horse battery staple", nil, 32)
	require.NoError(t, err)
	payload := []byte("the quick brown fox jumps over the lazy dog")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenEncryptedStream(vs2, "crypt", staticPrompt("correct horse battery staple"))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEncryptedStreamWrongPSKFailsToRecoverPlaintext(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w, err := CreateEncryptedStream(vs, "crypt", "aes-sha-psk", "right-password", nil, 32)
	require.NoError(t, err)
	payload := []byte("sixteen byte msg")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenEncryptedStream(vs2, "crypt", staticPrompt("wrong-password"))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.NotEqual(t, payload, got)
}

func TestEncryptedStreamNullSchemeIsPassthrough(t *testing.T) {
	dir := t.TempDir()
	vs, err := volume.Create(filepath.Join(dir, "image.fif"), 0)
	require.NoError(t, err)

	w, err := CreateEncryptedStream(vs, "crypt", "null", "", nil, 32)
	require.NoError(t, err)
	payload := []byte("plain bytes")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, vs.Close())

	vs2, err := volume.Open([]string{filepath.Join(dir, "image.fif")}, 0)
	require.NoError(t, err)
	defer vs2.Close()

	r, err := OpenEncryptedStream(vs2, "crypt", nil)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

type staticPrompt string

func (s staticPrompt) Prompt() (string, error) { return string(s), nil }
