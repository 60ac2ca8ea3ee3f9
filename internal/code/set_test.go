package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Add_And_Contains(t *testing.T) {
	set := NewSet(10)

	assert.True(t, set.Add("123456789012345"))
	assert.True(t, set.Contains("123456789012345"))
	assert.False(t, set.Contains("111111111111115"))

	// Duplicate addition should not increase size
	assert.False(t, set.Add("123456789012345"))
	assert.Equal(t, 1, set.Len())
}

func TestSet_Remove(t *testing.T) {
	set := NewSet(0, "A", "B")

	assert.True(t, set.Remove("A"))
	assert.False(t, set.Remove("A"))
	assert.False(t, set.Contains("A"))
	assert.Equal(t, 1, set.Len())
}

func TestSet_Len(t *testing.T) {
	tests := []struct {
		name     string
		codes    []string
		expected int
	}{
		{
			name:     "Empty set",
			codes:    []string{},
			expected: 0,
		},
		{
			name:     "Single code",
			codes:    []string{"CODE123"},
			expected: 1,
		},
		{
			name:     "Duplicate codes",
			codes:    []string{"CODE1", "CODE1", "CODE2"},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewSet(0, tt.codes...)
			assert.Equal(t, tt.expected, set.Len())
		})
	}
}

func TestSet_Sorted(t *testing.T) {
	set := NewSet(0, "3", "1", "2")
	assert.Equal(t, []string{"1", "2", "3"}, set.Sorted())
	assert.Empty(t, NewSet(0).Sorted())
}
