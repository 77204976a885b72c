package volume

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-fif/internal/cache"
	"github.com/deploymenttheory/go-fif/internal/fiferr"
	"github.com/deploymenttheory/go-fif/internal/properties"
	"github.com/deploymenttheory/go-fif/internal/zipio"
)

// propertiesMember is the reserved member name every volume carries,
// recording the archive UUID and its sibling volume names (spec.md §4.1,
// §4.4, §6).
const propertiesMember = "properties"

// Flusher is satisfied by any open stream writer that buffers data beyond
// what it has already appended to its volume (e.g. a MapStream's pending
// points). VolumeSet.Close flushes every registered Flusher before it
// finalizes the active volume's Central Directory.
type Flusher interface {
	Flush() error
}

// VolumeSet is a logical FIF archive: one archive UUID, one consolidated
// member index, and one or more backing ZIP64 volumes (spec.md §4.4).
type VolumeSet struct {
	uuid string
	dir  string

	volumes []*Volume
	loaded  map[string]bool

	index map[string]location
	cache *cache.ChunkCache

	writable bool
	writerV  *Volume // volume currently accepting new writes, nil if read-only

	writers []Flusher

	closed bool
}

// Open loads an existing archive starting from the given volume paths,
// recursively discovering and merging any sibling volumes they reference
// via their 'volume' properties. All listed UUIDs must agree, or
// fiferr.ErrIntegrity is returned. The archive is read-only until a
// caller explicitly resumes writing with AppendVolume or starts a new
// volume with CreateNewVolume.
func Open(paths []string, cacheLimit int) (*VolumeSet, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("volume: Open requires at least one path")
	}
	vs := &VolumeSet{
		dir:    filepath.Dir(paths[0]),
		loaded: make(map[string]bool),
		index:  make(map[string]location),
		cache:  cache.New(cacheLimit),
	}
	for _, p := range paths {
		if err := vs.mergeVolume(p); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// Create starts a brand-new, empty archive backed by a single fresh
// volume at path, with a freshly generated archive UUID.
func Create(path string, cacheLimit int) (*VolumeSet, error) {
	vs := &VolumeSet{
		uuid:   uuid.New().String(),
		dir:    filepath.Dir(path),
		loaded: make(map[string]bool),
		index:  make(map[string]location),
		cache:  cache.New(cacheLimit),
	}
	if err := vs.CreateNewVolume(path); err != nil {
		return nil, err
	}
	return vs, nil
}

// UUID returns the archive's RFC 4122 identifier.
func (vs *VolumeSet) UUID() string { return vs.uuid }

// Members returns the names of every live (non-tombstoned) member in the
// consolidated index, in no particular order.
func (vs *VolumeSet) Members() []string {
	out := make([]string, 0, len(vs.index))
	for name, loc := range vs.index {
		if !loc.entry.IsTombstone() {
			out = append(out, name)
		}
	}
	return out
}

// VolumeNames returns every volume currently loaded into the set, in load
// order.
func (vs *VolumeSet) VolumeNames() []string {
	out := make([]string, 0, len(vs.volumes))
	for _, v := range vs.volumes {
		out = append(out, v.Name)
	}
	return out
}

// Writable reports whether the set currently has an active volume
// accepting new members.
func (vs *VolumeSet) Writable() bool { return vs.writable && vs.writerV != nil }

// mergeVolume opens the existing file at path (it never creates one),
// parses its Central Directory into the consolidated index, checks the
// UUID in its own properties member, and recursively loads any sibling
// volumes it names that are not already loaded.
func (vs *VolumeSet) mergeVolume(path string) error {
	name := volumeNameForPath(path)
	if vs.loaded[name] {
		return nil
	}
	vs.loaded[name] = true

	f, err := openOSFileReadWrite(path)
	if err != nil {
		return err
	}
	size, err := f.Size()
	if err != nil {
		return err
	}

	vol := &Volume{Name: name, Path: path, file: f}
	vs.volumes = append(vs.volumes, vol)

	entries, err := zipio.ReadCentralDirectory(f, size)
	if err != nil {
		return fmt.Errorf("volume: reading central directory of %s: %w", path, err)
	}
	for _, e := range entries {
		applyEntry(vs.index, vol, e)
	}

	var propEntry zipio.CDEntry
	found := false
	for _, e := range entries {
		if e.Name == propertiesMember && !e.IsTombstone() {
			propEntry, found = e, true
		}
	}
	if !found {
		// This volume carries no properties member of its own — nothing
		// further to discover from it.
		return nil
	}
	raw, err := readEntryRaw(vol, propEntry)
	if err != nil {
		return fmt.Errorf("volume: reading properties of %s: %w", path, err)
	}
	props, _ := properties.Parse(string(raw))

	volUUID := props.Get("UUID", "")
	if volUUID != "" {
		if vs.uuid == "" {
			vs.uuid = volUUID
		} else if vs.uuid != volUUID {
			return fmt.Errorf("volume: %s has UUID %s, archive is %s: %w", path, volUUID, vs.uuid, fiferr.ErrIntegrity)
		}
	}

	for _, sibling := range props.GetArray("volume") {
		siblingPath := resolveVolumeName(vs.dir, sibling)
		if vs.loaded[sibling] {
			continue
		}
		if err := vs.mergeVolume(siblingPath); err != nil {
			return err
		}
	}
	return nil
}

// resolveVolumeName turns a "file://name" volume reference into a
// filesystem path alongside the volume that referenced it.
func resolveVolumeName(dir, name string) string {
	const prefix = "file://"
	base := name
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		base = name[len(prefix):]
	}
	return filepath.Join(dir, base)
}

func readEntryRaw(vol *Volume, e zipio.CDEntry) ([]byte, error) {
	buf := make([]byte, e.CompressedSize)
	if _, err := vol.file.ReadAt(buf, int64(e.DataOffset)); err != nil && err != io.EOF {
		return nil, err
	}
	if e.Method == zipio.Deflate {
		fr := flate.NewReader(bytes.NewReader(buf))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%s: inflating %s: %w", vol.Path, e.Name, err)
		}
		return out, nil
	}
	return buf, nil
}

// ReadMember returns the decompressed bytes of name, consulting the chunk
// cache first. A tombstoned or absent name yields fiferr.ErrNotFound.
func (vs *VolumeSet) ReadMember(name string) ([]byte, error) {
	if cached, ok := vs.cache.Get(name); ok {
		return cached, nil
	}
	loc, ok := vs.index[name]
	if !ok || loc.entry.IsTombstone() {
		return nil, fmt.Errorf("volume: member %q: %w", name, fiferr.ErrNotFound)
	}
	data, err := readEntryRaw(loc.vol, loc.entry)
	if err != nil {
		return nil, fmt.Errorf("volume: reading member %q: %w", name, err)
	}
	vs.cache.Put(name, data)
	return data, nil
}

// HasMember reports whether name resolves to a live (non-tombstoned)
// entry in the consolidated index.
func (vs *VolumeSet) HasMember(name string) bool {
	loc, ok := vs.index[name]
	return ok && !loc.entry.IsTombstone()
}

// OpenMemberForRead returns a seekable random-access reader over a Stored
// member. Deflate members reject this with ErrUnsupportedOperation — use
// ReadMember instead.
func (vs *VolumeSet) OpenMemberForRead(name string) (*zipio.MemberReader, error) {
	loc, ok := vs.index[name]
	if !ok || loc.entry.IsTombstone() {
		return nil, fmt.Errorf("volume: member %q: %w", name, fiferr.ErrNotFound)
	}
	return zipio.NewMemberReader(loc.vol.file, loc.entry)
}

// OpenMemberForWrite begins streaming a new member into the active
// writable volume, acquiring that volume's single write lock.
func (vs *VolumeSet) OpenMemberForWrite(name string, method zipio.Compression) (*zipio.MemberWriter, error) {
	if vs.writerV == nil {
		return nil, fmt.Errorf("volume: no writable volume: %w", fiferr.ErrUnsupportedOperation)
	}
	return vs.writerV.writer.OpenMember(name, method, time.Now())
}

// WriteMember writes data as a complete member in one call, updating the
// consolidated index immediately so a subsequent ReadMember in the same
// session sees it without waiting for Close.
func (vs *VolumeSet) WriteMember(name string, data []byte, method zipio.Compression) error {
	if vs.writerV == nil {
		return fmt.Errorf("volume: no writable volume: %w", fiferr.ErrUnsupportedOperation)
	}
	entry, err := vs.writerV.writer.WriteStr(name, data, method, time.Now())
	if err != nil {
		return err
	}
	applyEntry(vs.index, vs.writerV, entry)
	vs.cache.Expire(name)
	if len(data) > 0 {
		vs.cache.Put(name, data)
	}
	return nil
}

// WriteCompressedMember writes a member whose DEFLATE bytes have already
// been computed by the caller, bypassing a second compression pass. Used
// by streams that compress multiple chunks concurrently ahead of the
// single-writer append point.
func (vs *VolumeSet) WriteCompressedMember(name string, compressed []byte, crc uint32, uncompressedSize int64) error {
	if vs.writerV == nil {
		return fmt.Errorf("volume: no writable volume: %w", fiferr.ErrUnsupportedOperation)
	}
	entry, err := vs.writerV.writer.WriteCompressedStr(name, compressed, crc, uint64(uncompressedSize), time.Now())
	if err != nil {
		return err
	}
	applyEntry(vs.index, vs.writerV, entry)
	vs.cache.Expire(name)
	return nil
}

// IndexEntry folds a MemberWriter.Close() result into the consolidated
// index once a caller driving a streaming write (via OpenMemberForWrite)
// has closed it.
func (vs *VolumeSet) IndexEntry(e zipio.CDEntry) {
	applyEntry(vs.index, vs.writerV, e)
	vs.cache.Expire(e.Name)
}

// DeleteMember writes a tombstone entry for name: a zero-size Stored
// member that shadows any prior entry in the consolidated index.
func (vs *VolumeSet) DeleteMember(name string) error {
	return vs.WriteMember(name, nil, zipio.Stored)
}

// RegisterWriter adds f to the set of stream writers flushed at Close.
func (vs *VolumeSet) RegisterWriter(f Flusher) {
	vs.writers = append(vs.writers, f)
}

// UnregisterWriter removes f, typically once that stream has already
// closed itself explicitly.
func (vs *VolumeSet) UnregisterWriter(f Flusher) {
	for i, w := range vs.writers {
		if w == f {
			vs.writers = append(vs.writers[:i], vs.writers[i+1:]...)
			return
		}
	}
}

// CreateNewVolume finalizes the currently active volume (if any) and
// begins a fresh one at path, becoming the new active writable volume.
// Corresponds to the original's AFF4_VOLUME_SIZE rollover.
func (vs *VolumeSet) CreateNewVolume(path string) error {
	if vs.writerV != nil {
		if _, err := vs.finalizeActiveVolume(); err != nil {
			return err
		}
	}
	f, err := createOSFile(path)
	if err != nil {
		return err
	}
	vol := &Volume{Name: volumeNameForPath(path), Path: path, file: f, writer: zipio.NewWriter(f, 0)}
	vs.volumes = append(vs.volumes, vol)
	vs.loaded[vol.Name] = true
	vs.writerV = vol
	vs.writable = true
	return nil
}

// AppendVolume reopens an already-loaded volume (by its "file://name"
// identifier) for continued writes, resuming the append position at
// that volume's previous Central Directory offset so the stale CD is
// naturally overwritten by the one Close ultimately writes.
func (vs *VolumeSet) AppendVolume(name string) error {
	var target *Volume
	for _, v := range vs.volumes {
		if v.Name == name {
			target = v
			break
		}
	}
	if target == nil {
		return fmt.Errorf("volume: unknown volume %q: %w", name, fiferr.ErrNotFound)
	}
	if vs.writerV != nil && vs.writerV != target {
		if _, err := vs.finalizeActiveVolume(); err != nil {
			return err
		}
	}
	size, err := target.file.Size()
	if err != nil {
		return err
	}
	cdStart, err := zipio.FindCentralDirectoryStart(target.file, size)
	if err != nil {
		return err
	}
	target.writer = zipio.NewWriter(target.file, cdStart)
	target.writer.SeedEntries(vs.indexEntriesFor(target))
	vs.writerV = target
	vs.writable = true
	return nil
}

func (vs *VolumeSet) indexEntriesFor(vol *Volume) []zipio.CDEntry {
	out := make([]zipio.CDEntry, 0)
	for _, loc := range vs.index {
		if loc.vol == vol {
			out = append(out, loc.entry)
		}
	}
	return out
}

// finalizeActiveVolume writes the archive properties (UUID plus sibling
// volume names) as the active volume's properties member, then finalizes
// its Central Directory.
func (vs *VolumeSet) finalizeActiveVolume() (uint64, error) {
	vol := vs.writerV
	props := properties.New()
	props.Set("UUID", vs.uuid)
	for _, v := range vs.volumes {
		if v != vol {
			props.Append("volume", v.Name)
		}
	}
	entry, err := vol.writer.WriteStr(propertiesMember, props.Bytes(), zipio.Stored, time.Now())
	if err != nil {
		return 0, err
	}
	applyEntry(vs.index, vol, entry)

	total, err := vol.writer.Finalize()
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Close flushes every registered stream writer, finalizes the active
// volume, and closes every backing file. The VolumeSet must not be used
// afterward.
func (vs *VolumeSet) Close() error {
	if vs.closed {
		return nil
	}
	vs.closed = true

	var err error
	for _, w := range vs.writers {
		if ferr := w.Flush(); ferr != nil {
			err = multierr.Append(err, fmt.Errorf("volume: flushing open stream: %w", ferr))
		}
	}
	vs.writers = nil

	if err != nil {
		return err
	}

	if vs.writerV != nil {
		if _, ferr := vs.finalizeActiveVolume(); ferr != nil {
			return ferr
		}
	}

	for _, v := range vs.volumes {
		if cerr := v.file.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
