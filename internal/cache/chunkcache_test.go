package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGet(t *testing.T) {
	c := New(1024)
	c.Put("a", []byte("hello"))

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestEvictionIsFIFO(t *testing.T) {
	c := New(10)
	c.Put("a", []byte("12345")) // size 5
	c.Put("b", []byte("12345")) // size 10
	_, aStillThere := c.Get("a")
	assert.True(t, aStillThere)

	c.Put("c", []byte("12345")) // pushes size to 15, evict "a"
	_, aGone := c.Get("a")
	assert.False(t, aGone)
	_, bStillThere := c.Get("b")
	assert.True(t, bStillThere)
	_, cThere := c.Get("c")
	assert.True(t, cThere)
	assert.Equal(t, 10, c.Size())
}

func TestExpire(t *testing.T) {
	c := New(1024)
	c.Put("a", []byte("x"))
	c.Expire("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())

	// Expiring a missing key is silent.
	c.Expire("nope")
}

func TestDefaultLimit(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultLimit, c.limit)
}

func TestReinsertReplacesBytes(t *testing.T) {
	c := New(1024)
	c.Put("a", []byte("12345"))
	c.Put("a", []byte("xyz"))
	assert.Equal(t, 3, c.Size())
	v, _ := c.Get("a")
	assert.Equal(t, []byte("xyz"), v)
}
