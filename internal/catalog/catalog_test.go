package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
routes:
  - id: campus-loop
    name: Campus Loop
    directions:
      to:
        - {sequence: 2, name: Library, lat: 40.0020, lon: -83.0}
        - {sequence: 0, name: Main Gate, lat: 40.0000, lon: -83.0}
        - {sequence: 1, name: Union, lat: 40.0010, lon: -83.0}
      fro:
        - {sequence: 0, name: Library, lat: 40.0020, lon: -83.0}
        - {sequence: 1, name: Main Gate, lat: 40.0000, lon: -83.0}
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	stops, ok := c.Stops("campus-loop", "to")
	require.True(t, ok)
	require.Len(t, stops, 3)
	assert.Equal(t, "Main Gate", stops[0].Name)
	assert.Equal(t, "Library", stops[2].Name)
	assert.Equal(t, 2, c.MaxSequence("campus-loop", "to"))
	assert.Equal(t, 1, c.MaxSequence("campus-loop", "fro"))
	assert.Equal(t, -1, c.MaxSequence("missing", "to"))
	assert.Equal(t, []string{"campus-loop"}, c.Routes())
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "routes:\n  - name: x\n"},
		{"bad direction", "routes:\n  - id: a\n    directions:\n      up: [{sequence: 0}]\n"},
		{"duplicate sequence", "routes:\n  - id: a\n    directions:\n      to: [{sequence: 0}, {sequence: 0}]\n"},
		{"not yaml", "routes: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
