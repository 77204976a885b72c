package streams

import (
	"fmt"

	"github.com/deploymenttheory/go-fif/internal/cache"
	"github.com/deploymenttheory/go-fif/internal/keyprovider"
	"github.com/deploymenttheory/go-fif/internal/properties"
	"github.com/deploymenttheory/go-fif/internal/volume"
)

// DefaultEncryptedChunkSize is larger than a plain Image stream's default
// to amortize per-chunk AES/SHA overhead (spec.md §4.9).
const DefaultEncryptedChunkSize = 16 * 1024 * 1024

// EncryptedStream is an ImageStream whose chunks pass through a
// cryptoScheme before being stored, always with Stored (not DEFLATE)
// compression — the ciphertext does not compress (spec.md §4.9).
type EncryptedStream struct {
	*ImageStream
}

type encryptedChunkIO struct {
	vs     *volume.VolumeSet
	name   string
	scheme cryptoScheme
	cache  *cache.ChunkCache
}

func (e *encryptedChunkIO) readChunk(chunkID int64) ([]byte, error) {
	cacheKey := chunkName(e.name, chunkID)
	if data, ok := e.cache.Get(cacheKey); ok {
		return data, nil
	}
	raw, err := e.vs.ReadMember(chunkName(e.name, chunkID))
	if err != nil {
		return nil, err
	}
	plain := e.scheme.decryptBlock(chunkID, raw)
	e.cache.Put(cacheKey, plain)
	return plain, nil
}

func (e *encryptedChunkIO) writeChunk(chunkID int64, data []byte) error {
	return e.vs.WriteMember(chunkName(e.name, chunkID), e.scheme.encryptBlock(chunkID, data), 0)
}

// CreateEncryptedStream begins a new writable Encrypted stream. scheme is
// "null" or "aes-sha-psk"; for "aes-sha-psk", the pre-shared key is
// resolved via internal/keyprovider: the FIF_PSK environment variable
// wins over psk, and prompt is asked only when both are empty. A fresh
// salt is generated and recorded in the stream's properties.
func CreateEncryptedStream(vs *volume.VolumeSet, name, scheme, psk string, prompt keyprovider.Prompter, chunkSize int64) (*EncryptedStream, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultEncryptedChunkSize
	}
	if scheme == "" {
		scheme = "null"
	}

	props := properties.New()
	crypto, err := buildSchemeForWrite(scheme, psk, prompt, props)
	if err != nil {
		return nil, err
	}

	base := &ImageStream{
		vs:         vs,
		name:       name,
		mode:       ModeWrite,
		props:      props,
		chunkSize:  chunkSize,
		io:         &encryptedChunkIO{vs: vs, name: name, scheme: crypto, cache: cache.New(0)},
		streamType: "Encrypted",
	}
	base.beforeClose = func(p *properties.Properties) {
		p.Set("scheme", scheme)
	}
	vs.RegisterWriter(base)
	return &EncryptedStream{ImageStream: base}, nil
}

func buildSchemeForWrite(scheme, psk string, prompt keyprovider.Prompter, props *properties.Properties) (cryptoScheme, error) {
	switch scheme {
	case "null":
		return nullScheme{}, nil
	case "aes-sha-psk":
		salt, err := randomSalt()
		if err != nil {
			return nil, err
		}
		props.Set("salt", encodeSalt(salt))
		resolved, ok, err := keyprovider.Resolve(psk, prompt)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("streams: no pre-shared key available for scheme %q", scheme)
		}
		return newAESSHAPSKScheme(resolved, salt), nil
	default:
		return nil, fmt.Errorf("streams: unsupported crypto scheme %q", scheme)
	}
}

// OpenEncryptedStream opens an existing Encrypted stream for reading.
// prompt is consulted for a PSK only if neither the FIF_PSK environment
// variable nor the stream's own (one-time) 'PSK' property has one.
func OpenEncryptedStream(vs *volume.VolumeSet, name string, prompt keyprovider.Prompter) (*EncryptedStream, error) {
	props, err := loadStreamProperties(vs, name)
	if err != nil {
		return nil, err
	}
	if err := requireStreamType(props, "Encrypted"); err != nil {
		return nil, err
	}

	scheme := props.Get("scheme", "null")
	crypto, err := buildSchemeForRead(scheme, props, prompt)
	if err != nil {
		return nil, err
	}

	base := &ImageStream{
		vs:         vs,
		name:       name,
		mode:       ModeRead,
		props:      props,
		chunkSize:  props.GetInt("chunk_size", DefaultEncryptedChunkSize),
		size:       props.GetInt("size", 0),
		io:         &encryptedChunkIO{vs: vs, name: name, scheme: crypto, cache: cache.New(0)},
		streamType: "Encrypted",
	}
	return &EncryptedStream{ImageStream: base}, nil
}

func buildSchemeForRead(scheme string, props *properties.Properties, prompt keyprovider.Prompter) (cryptoScheme, error) {
	switch scheme {
	case "null":
		return nullScheme{}, nil
	case "aes-sha-psk":
		saltEncoded, err := props.MustGet("salt")
		if err != nil {
			return nil, err
		}
		salt, err := decodeSalt(saltEncoded)
		if err != nil {
			return nil, err
		}
		propPSK := props.Get("PSK", "")
		if propPSK != "" {
			// Never persist the PSK past the session it was supplied in.
			props.Delete("PSK")
		}
		resolved, ok, err := keyprovider.Resolve(propPSK, prompt)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("streams: no pre-shared key available for scheme %q", scheme)
		}
		return newAESSHAPSKScheme(resolved, salt), nil
	default:
		return nil, fmt.Errorf("streams: unsupported crypto scheme %q", scheme)
	}
}
