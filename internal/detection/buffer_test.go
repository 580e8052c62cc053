package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	b := NewBuffer[int](LocationBufferSize)

	for i := 0; i < 250; i++ {
		b.Push(i)
		assert.LessOrEqual(t, b.Len(), LocationBufferSize)
	}

	items := b.Items()
	assert.Len(t, items, LocationBufferSize)
	// Holds the newest 100 in insertion order
	for i, v := range items {
		if v != 150+i {
			t.Fatalf("items[%d] = %d, want %d", i, v, 150+i)
		}
	}
}

func TestBuffer_Last(t *testing.T) {
	b := NewBuffer[string](3)
	assert.Nil(t, b.Last(2))

	_, ok := b.Newest()
	assert.False(t, ok)

	for _, s := range []string{"a", "b", "c", "d"} {
		b.Push(s)
	}

	assert.Equal(t, []string{"c", "d"}, b.Last(2))
	assert.Equal(t, []string{"b", "c", "d"}, b.Last(10))

	newest, ok := b.Newest()
	assert.True(t, ok)
	assert.Equal(t, "d", newest)
}

func TestBuffer_ItemsIsACopy(t *testing.T) {
	b := NewBuffer[int](2)
	b.Push(1)

	items := b.Items()
	items[0] = 42

	assert.Equal(t, []int{1}, b.Items())
}
