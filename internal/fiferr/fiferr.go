// Package fiferr defines the sentinel error kinds used throughout the FIF
// core, matching the error taxonomy from the format specification.
package fiferr

import "errors"

// Sentinel error kinds. Callers should use errors.Is against these, since
// concrete errors are always wrapped with context via fmt.Errorf("...: %w").
var (
	// ErrIntegrity signals a UUID mismatch between volumes, a malformed
	// ZIP structure, or a CRC mismatch on a read chunk.
	ErrIntegrity = errors.New("fif: integrity error")

	// ErrLocked signals an attempt to open a second writable member on a
	// volume while one is already open.
	ErrLocked = errors.New("fif: member locked for writing")

	// ErrNotFound signals a member name absent from the consolidated index.
	ErrNotFound = errors.New("fif: member not found")

	// ErrUnsupportedOperation signals random access on a deflate member,
	// or a seek on a compressed writer.
	ErrUnsupportedOperation = errors.New("fif: unsupported operation")

	// ErrParse signals a malformed properties or map line. Structural
	// parse errors abort; per-line parse errors in user data are
	// swallowed by the caller instead of surfacing this.
	ErrParse = errors.New("fif: parse error")
)
