package streams

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// aesBlockSize is both the cipher's block size and the padding unit
// EncryptedStream pads the final partial block of every chunk up to.
const aesBlockSize = 16

// cryptoScheme implements one of the encryption schemes a FIF archive's
// Encrypted stream can name in its 'scheme' property.
type cryptoScheme interface {
	// encryptBlock pads block to a multiple of aesBlockSize with 0xFF
	// and encrypts it. The caller (EncryptedStream) is responsible for
	// tracking the stream's true logical size separately, since no pad
	// length is stored anywhere in the ciphertext.
	encryptBlock(chunkID int64, block []byte) []byte
	// decryptBlock reverses encryptBlock; the result may carry trailing
	// 0xFF padding bytes the caller must trim using the stream's size.
	decryptBlock(chunkID int64, block []byte) []byte
}

// nullScheme is the identity scheme, used when a stream's 'scheme'
// property is absent or explicitly "null".
type nullScheme struct{}

func (nullScheme) encryptBlock(_ int64, block []byte) []byte { return block }
func (nullScheme) decryptBlock(_ int64, block []byte) []byte { return block }

// aesSHAPSKScheme is "aes-sha-psk": AES-128-CBC with a master key derived
// from SHA1(PSK || salt), and a per-chunk IV derived from
// SHA1(LE32(chunk_index) || master_key) (spec.md §4.9).
type aesSHAPSKScheme struct {
	masterKey []byte
}

func newAESSHAPSKScheme(psk string, salt []byte) *aesSHAPSKScheme {
	sum := sha1.Sum(append([]byte(psk), salt...))
	key := make([]byte, aesBlockSize)
	copy(key, sum[:aesBlockSize])
	return &aesSHAPSKScheme{masterKey: key}
}

// randomSalt returns a fresh 8-byte salt for a newly created Encrypted
// stream, matching the original implementation's salt length.
func randomSalt() ([]byte, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("streams: generating salt: %w", err)
	}
	return salt, nil
}

func encodeSalt(salt []byte) string { return base64.StdEncoding.EncodeToString(salt) }

func decodeSalt(encoded string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("streams: decoding salt: %w", err)
	}
	return salt, nil
}

func (s *aesSHAPSKScheme) chunkIV(chunkID int64) []byte {
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], uint32(chunkID))
	sum := sha1.Sum(append(idBuf[:], s.masterKey...))
	return sum[:aesBlockSize]
}

func padToBlockSize(block []byte) []byte {
	rem := len(block) % aesBlockSize
	if rem == 0 {
		return block
	}
	padded := make([]byte, len(block)+(aesBlockSize-rem))
	copy(padded, block)
	for i := len(block); i < len(padded); i++ {
		padded[i] = 0xFF
	}
	return padded
}

func (s *aesSHAPSKScheme) encryptBlock(chunkID int64, block []byte) []byte {
	block = padToBlockSize(block)
	blockCipher, err := aes.NewCipher(s.masterKey)
	if err != nil {
		// masterKey is always exactly aesBlockSize bytes; aes.NewCipher
		// can only fail on a bad key length.
		panic(fmt.Sprintf("streams: aes-sha-psk master key: %v", err))
	}
	mode := cipher.NewCBCEncrypter(blockCipher, s.chunkIV(chunkID))
	out := make([]byte, len(block))
	mode.CryptBlocks(out, block)
	return out
}

func (s *aesSHAPSKScheme) decryptBlock(chunkID int64, block []byte) []byte {
	blockCipher, err := aes.NewCipher(s.masterKey)
	if err != nil {
		panic(fmt.Sprintf("streams: aes-sha-psk master key: %v", err))
	}
	mode := cipher.NewCBCDecrypter(blockCipher, s.chunkIV(chunkID))
	out := make([]byte, len(block))
	mode.CryptBlocks(out, block)
	return out
}
