// Package properties implements the FIF properties metadata format: an
// ordered multi-map of key to one-or-more values, with a line-based text
// wire format ("key=value\n", first '=' separates).
package properties

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
)

// Properties is an ordered multi-map: for each key, the list of values
// preserves the order in which they were added. Keys are compared
// case-insensitively; values are case-sensitive and never escaped.
type Properties struct {
	order  []string // insertion order of distinct (lower-cased) keys
	values map[string][]string
	// display remembers the first-seen casing of each key, so
	// serialization round-trips the caller's original spelling.
	display map[string]string
}

// New returns an empty Properties multi-map.
func New() *Properties {
	return &Properties{
		values:  make(map[string][]string),
		display: make(map[string]string),
	}
}

// Parse decodes the properties wire format. Lines with no '=' are skipped
// per spec (they are a per-line ParseError that callers treat as skipped,
// not a fatal error), but the skipped count is reported so a caller that
// cares can escalate.
func Parse(text string) (*Properties, int) {
	p := New()
	skipped := 0
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			skipped++
			continue
		}
		key := line[:idx]
		value := line[idx+1:]
		p.Append(key, value)
	}
	return p, skipped
}

func normKey(key string) string {
	return strings.ToLower(key)
}

// Get returns the first value for key, or def if key is absent.
func (p *Properties) Get(key, def string) string {
	vs, ok := p.values[normKey(key)]
	if !ok || len(vs) == 0 {
		return def
	}
	return vs[0]
}

// GetInt returns the first value for key parsed as an integer, or def if
// the key is absent or the value does not parse.
func (p *Properties) GetInt(key string, def int64) int64 {
	v, ok := p.values[normKey(key)]
	if !ok || len(v) == 0 {
		return def
	}
	n, err := strconv.ParseInt(v[0], 10, 64)
	if err != nil {
		return def
	}
	return n
}

// GetArray returns the full ordered list of values for key (nil if absent).
func (p *Properties) GetArray(key string) []string {
	return p.values[normKey(key)]
}

// Set replaces all values for key with a single value.
func (p *Properties) Set(key, value string) {
	nk := normKey(key)
	if _, ok := p.values[nk]; !ok {
		p.order = append(p.order, nk)
		p.display[nk] = key
	}
	p.values[nk] = []string{value}
}

// SetInt is Set for an integer value.
func (p *Properties) SetInt(key string, value int64) {
	p.Set(key, strconv.FormatInt(value, 10))
}

// Append adds value under key unless it is already present, preserving
// insertion order of both distinct keys and the values within a key.
func (p *Properties) Append(key, value string) {
	nk := normKey(key)
	existing, ok := p.values[nk]
	if !ok {
		p.order = append(p.order, nk)
		p.display[nk] = key
		p.values[nk] = []string{value}
		return
	}
	for _, v := range existing {
		if v == value {
			return
		}
	}
	p.values[nk] = append(existing, value)
}

// Delete removes all values for key.
func (p *Properties) Delete(key string) {
	nk := normKey(key)
	if _, ok := p.values[nk]; !ok {
		return
	}
	delete(p.values, nk)
	delete(p.display, nk)
	for i, k := range p.order {
		if k == nk {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Has reports whether key has at least one value.
func (p *Properties) Has(key string) bool {
	vs, ok := p.values[normKey(key)]
	return ok && len(vs) > 0
}

// Update appends every value from other that is not already present under
// the same key, preserving other's per-key ordering.
func (p *Properties) Update(other *Properties) {
	for _, nk := range other.order {
		display := other.display[nk]
		for _, v := range other.values[nk] {
			p.Append(display, v)
		}
	}
}

// Keys returns the distinct keys in first-insertion order, using the
// casing each key was first set/appended with.
func (p *Properties) Keys() []string {
	out := make([]string, 0, len(p.order))
	for _, nk := range p.order {
		out = append(out, p.display[nk])
	}
	return out
}

// String serializes the properties multi-map to the wire format: for
// each key in insertion order, one "key=value\n" line per value in that
// key's insertion order.
func (p *Properties) String() string {
	var b strings.Builder
	for _, nk := range p.order {
		display := p.display[nk]
		for _, v := range p.values[nk] {
			fmt.Fprintf(&b, "%s=%s\n", display, v)
		}
	}
	return b.String()
}

// Bytes is a convenience wrapper around String for member writers.
func (p *Properties) Bytes() []byte {
	return []byte(p.String())
}

// MustGet returns the first value for key, or a wrapped fiferr.ErrNotFound
// if the key has no values. Reserved for callers that treat an absent
// mandatory key as a structural error rather than using a default.
func (p *Properties) MustGet(key string) (string, error) {
	vs, ok := p.values[normKey(key)]
	if !ok || len(vs) == 0 {
		return "", fmt.Errorf("properties: key %q: %w", key, fiferr.ErrNotFound)
	}
	return vs[0], nil
}
