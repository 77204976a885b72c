package streams

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
	"github.com/deploymenttheory/go-fif/internal/properties"
	"github.com/deploymenttheory/go-fif/internal/volume"
)

// MapStream is a read-through reindirection over one or more target
// streams: each file offset maps, via piecewise-linear interpolation
// between recorded points, to an (target, offset) pair (spec.md §4.7).
type MapStream struct {
	vs   *volume.VolumeSet
	name string
	mode Mode

	props   *properties.Properties
	size    int64
	readptr int64

	points  []int64
	mapping map[int64]int64
	target  map[int64]int

	targets []io.ReadSeeker

	filePeriod  int64
	imagePeriod int64
}

// CreateMapStream begins a new writable Map stream. targetNames are the
// stream/volume names add_point's targetIndex refers into; they are
// recorded verbatim as the stream's 'target' properties but, since
// writing a map never needs to read through it, are not opened here.
func CreateMapStream(vs *volume.VolumeSet, name string, targetNames []string) *MapStream {
	props := properties.New()
	for _, t := range targetNames {
		props.Append("target", t)
	}
	m := &MapStream{
		vs:      vs,
		name:    name,
		mode:    ModeWrite,
		props:   props,
		mapping: make(map[int64]int64),
		target:  make(map[int64]int),
	}
	vs.RegisterWriter(m)
	return m
}

// OpenMapStream opens an existing Map stream for reading, resolving each
// named target stream within the same VolumeSet eagerly.
func OpenMapStream(vs *volume.VolumeSet, name string) (*MapStream, error) {
	props, err := loadStreamProperties(vs, name)
	if err != nil {
		return nil, err
	}
	if err := requireStreamType(props, "Map"); err != nil {
		return nil, err
	}

	m := &MapStream{
		vs:          vs,
		name:        name,
		mode:        ModeRead,
		props:       props,
		size:        props.GetInt("size", 0),
		mapping:     make(map[int64]int64),
		target:      make(map[int64]int),
		filePeriod:  props.GetInt("file_period", 0),
		imagePeriod: props.GetInt("image_period", 0),
	}

	targetNames := props.GetArray("target")
	if len(targetNames) == 0 {
		return nil, fmt.Errorf("streams: map stream %q has no targets", name)
	}
	for _, tn := range targetNames {
		target, err := OpenAnyStream(vs, tn)
		if err != nil {
			return nil, fmt.Errorf("streams: opening map target %q: %w", tn, err)
		}
		m.targets = append(m.targets, target)
	}

	if err := m.loadMap(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MapStream) mapMemberName() string { return m.name + "/map" }

func (m *MapStream) loadMap() error {
	raw, err := m.vs.ReadMember(m.mapMemberName())
	if err != nil {
		return fmt.Errorf("streams: loading map for %q: %w", m.name, err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		filePos, err1 := strconv.ParseInt(fields[0], 10, 64)
		imagePos, err2 := strconv.ParseInt(fields[1], 10, 64)
		targetIdx, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		m.AddPoint(filePos, imagePos, targetIdx)
	}
	return nil
}

// AddPoint records a new (file offset -> image offset, target) mapping
// point. Points may be added in any order; re-adding an existing file
// offset replaces its mapping rather than duplicating the point.
func (m *MapStream) AddPoint(filePos, imagePos int64, targetIndex int) {
	if _, exists := m.mapping[filePos]; !exists {
		i := sort.Search(len(m.points), func(i int) bool { return m.points[i] >= filePos })
		m.points = append(m.points, 0)
		copy(m.points[i+1:], m.points[i:])
		m.points[i] = filePos
	}
	m.mapping[filePos] = imagePos
	m.target[filePos] = targetIndex
}

// Pack rewrites the point list to the minimal set needed to reproduce
// the current mapping function exactly, dropping any point whose value
// is already implied by straight-line interpolation from its
// predecessor. The first point is always kept — packing a single-point
// map must never empty it.
func (m *MapStream) Pack() {
	if len(m.points) == 0 {
		return
	}
	lastFilePoint := m.points[0]
	result := []int64{lastFilePoint}
	lastImagePoint := m.mapping[lastFilePoint]

	for _, point := range m.points[1:] {
		interpolated := lastImagePoint + (point - lastFilePoint)
		lastFilePoint = point
		lastImagePoint = m.mapping[lastFilePoint]
		if interpolated != lastImagePoint {
			result = append(result, point)
		}
	}
	m.points = result
}

func bisectRight(points []int64, x int64) int {
	return sort.Search(len(points), func(i int) bool { return points[i] > x })
}

// interpolate returns the (image offset, run length until the next
// discontinuity, target index) for fileOffset (spec.md §4.7).
func (m *MapStream) interpolate(fileOffset int64, directionForward bool) (int64, int64, int, error) {
	if len(m.points) == 0 {
		return 0, 0, 0, fmt.Errorf("streams: map stream %q has no points: %w", m.name, fiferr.ErrIntegrity)
	}

	filePeriod := m.filePeriod
	imagePeriod := m.imagePeriod
	var periodNumber int64
	if filePeriod > 0 {
		periodNumber = fileOffset / filePeriod
		fileOffset = fileOffset % filePeriod
	} else {
		filePeriod = m.size
	}

	if fileOffset < m.points[0] {
		directionForward = false
	} else if fileOffset > m.points[len(m.points)-1] {
		directionForward = true
	}

	var point int64
	var imageOffset, left int64
	if directionForward {
		l := bisectRight(m.points, fileOffset) - 1
		if l < 0 {
			l = 0
		}
		point = m.points[l]
		if l+1 < len(m.points) {
			left = m.points[l+1] - fileOffset
		} else {
			left = filePeriod - fileOffset
		}
		imageOffset = m.mapping[point] + fileOffset - point
	} else {
		r := bisectRight(m.points, fileOffset)
		if r >= len(m.points) {
			r = len(m.points) - 1
		}
		point = m.points[r]
		imageOffset = m.mapping[point] - (point - fileOffset)
		left = point - fileOffset
	}

	return imageOffset + imagePeriod*periodNumber, left, m.target[point], nil
}

// SetSize fixes the stream's logical size explicitly. If never called,
// Close infers it from the last recorded point.
func (m *MapStream) SetSize(size int64) { m.size = size }

// SetPeriod configures RAID-style periodic wraparound: every filePeriod
// bytes of file offset, the interpolated image offset advances by a
// further imagePeriod (spec.md §4.7).
func (m *MapStream) SetPeriod(filePeriod, imagePeriod int64) {
	m.filePeriod = filePeriod
	m.imagePeriod = imagePeriod
	m.props.SetInt("file_period", filePeriod)
	m.props.SetInt("image_period", imagePeriod)
}

// Name returns the stream's member-name prefix.
func (m *MapStream) Name() string { return m.name }

// Size returns the stream's total logical byte length.
func (m *MapStream) Size() int64 { return m.size }

// Seek repositions the read pointer; only valid in read mode.
func (m *MapStream) Seek(offset int64, whence int) (int64, error) {
	if m.mode != ModeRead {
		return 0, fmt.Errorf("streams: seek on map stream %q open for writing", m.name)
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = m.readptr + offset
	case io.SeekEnd:
		pos = m.size + offset
	default:
		return 0, fmt.Errorf("streams: invalid whence %d", whence)
	}
	m.readptr = pos
	return m.readptr, nil
}

// Read implements io.Reader, interpolating the target and offset for
// each contiguous run and issuing one read per target.
func (m *MapStream) Read(p []byte) (int, error) {
	if m.mode != ModeRead {
		return 0, fmt.Errorf("streams: read on map stream %q open for writing", m.name)
	}
	want := int64(len(p))
	if remaining := m.size - m.readptr; want > remaining {
		want = remaining
	}
	if want <= 0 {
		return 0, io.EOF
	}

	var total int64
	for total < want {
		imageOffset, left, targetIndex, err := m.interpolate(m.readptr, true)
		if err != nil {
			return int(total), err
		}
		if targetIndex < 0 || targetIndex >= len(m.targets) {
			return int(total), fmt.Errorf("streams: map stream %q references unknown target %d: %w", m.name, targetIndex, fiferr.ErrIntegrity)
		}
		target := m.targets[targetIndex]
		if _, err := target.Seek(imageOffset, io.SeekStart); err != nil {
			return int(total), err
		}

		toRead := want - total
		if left < toRead {
			toRead = left
		}
		n, err := io.ReadFull(target, p[total:total+toRead])
		total += int64(n)
		m.readptr += int64(n)
		if n == 0 || (err != nil && err != io.ErrUnexpectedEOF) {
			break
		}
	}
	if total == 0 {
		return 0, io.EOF
	}
	return int(total), nil
}

// Flush is a no-op for a read-mode map; for a writable map it persists
// the points and properties exactly as Close does, without unregistering
// the stream.
func (m *MapStream) Flush() error {
	if m.mode != ModeWrite {
		return nil
	}
	return m.save()
}

func (m *MapStream) save() error {
	var b strings.Builder
	for _, p := range m.points {
		fmt.Fprintf(&b, "%d %d %d\n", p, m.mapping[p], m.target[p])
	}
	if err := m.vs.WriteMember(m.mapMemberName(), []byte(b.String()), 0); err != nil {
		return err
	}
	if m.size == 0 && len(m.points) > 0 {
		m.size = m.points[len(m.points)-1]
	}
	return writeStreamProperties(m.vs, m.name, "Map", m.size, m.props)
}

// Close writes the map's points and properties.
func (m *MapStream) Close() error {
	if m.mode != ModeWrite {
		return nil
	}
	m.vs.UnregisterWriter(m)
	return m.save()
}
