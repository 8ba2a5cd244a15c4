package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color int

const (
	red color = iota + 1
	blue
)

func newColors() *Enum[color] {
	return NewEnum("color", map[string]color{
		"red":  red,
		"Blue": blue,
		"navy": blue,
	})
}

func TestEnumParse(t *testing.T) {
	e := newColors()

	tests := []struct {
		raw  string
		want color
	}{
		{"red", red},
		{"  RED ", red},
		{"blue", blue},
		{"Navy", blue},
	}
	for _, tt := range tests {
		got, err := e.Parse(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestEnumParseUnknown(t *testing.T) {
	_, err := newColors().Parse("green")
	require.Error(t, err)
	assert.Equal(t, `invalid color "green", valid options: blue, navy, red`, err.Error())
}

func TestEnumLookupAndKeys(t *testing.T) {
	e := newColors()
	_, ok := e.Lookup("")
	assert.False(t, ok)

	keys := e.Keys()
	assert.Equal(t, []string{"blue", "navy", "red"}, keys)
	keys[0] = "mutated"
	assert.Equal(t, "blue", e.Keys()[0])
}
