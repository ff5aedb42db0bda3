package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFromCache(t *testing.T) {
	c := NewCache(NoExpiration, 0)
	c.Set("schedules", []string{"a", "b"}, NoExpiration)
	c.Set("count", 3, NoExpiration)

	got, ok := GetFromCache[[]string](c, "schedules")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = GetFromCache[string](c, "count")
	assert.False(t, ok, "type mismatch must miss")

	_, ok = GetFromCache[int](c, "missing")
	assert.False(t, ok)

	c.Flush()
	assert.Equal(t, 0, c.ItemCount())
}
