package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	page, limit := Normalize(0, 0, 12)
	assert.Equal(t, 1, page)
	assert.Equal(t, 12, limit)

	page, limit = Normalize(3, 500, 12)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxLimit, limit)
}

func TestNew(t *testing.T) {
	p := New(2, 12, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = New(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)
}
