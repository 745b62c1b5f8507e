package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cachedBody{body: []byte("a")})
	c.put("b", cachedBody{body: []byte("b")})
	c.put("c", cachedBody{body: []byte("c")})

	_, ok := c.get("a")
	assert.False(t, ok, "a should be evicted")
	_, ok = c.get("b")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_AccessPromotes(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cachedBody{body: []byte("a")})
	c.put("b", cachedBody{body: []byte("b")})

	// Access "a" to make it most recently used.
	c.get("a")
	c.put("c", cachedBody{body: []byte("c")})

	_, ok := c.get("a")
	assert.True(t, ok, "a should survive (recently accessed)")
	_, ok = c.get("b")
	assert.False(t, ok, "b should be evicted (least recently used)")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cachedBody{etag: "v1"})
	c.put("a", cachedBody{etag: "v2"})

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "v2", v.etag)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_Disabled(t *testing.T) {
	c := newLRUCache(0)
	c.put("a", cachedBody{etag: "v1"})

	_, ok := c.get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())
}
