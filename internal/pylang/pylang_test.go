package pylang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"x", true},
		{"_private", true},
		{"äöü", true},
		{"name2", true},
		{"2name", false},
		{"", false},
		{"a-b", false},
		{"a b", false},
		{"class", true}, // lexically fine, rejected via IsKeyword
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsIdentifier(tt.in), tt.in)
	}
}

func TestKeywordsAndBuiltins(t *testing.T) {
	t.Parallel()

	assert.True(t, IsKeyword("lambda"))
	assert.True(t, IsKeyword("None"))
	assert.False(t, IsKeyword("match"), "soft keywords are identifiers")
	assert.True(t, IsBuiltin("len"))
	assert.True(t, IsBuiltin("ValueError"))
	assert.False(t, IsBuiltin("foo"))
}
