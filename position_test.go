package gridcalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionString(t *testing.T) {
	assert.Equal(t, "A1", Position{Row: 0, Col: 0}.String())
	assert.Equal(t, "B1", Position{Row: 0, Col: 1}.String())
	assert.Equal(t, "A2", Position{Row: 1, Col: 0}.String())
	assert.Equal(t, "AA1", Position{Row: 0, Col: 26}.String())
}

func TestParsePositionRoundTrips(t *testing.T) {
	cases := []string{"A1", "B1", "A2", "AA1", "Z100"}
	for _, s := range cases {
		pos, err := ParsePosition(s)
		require.NoError(t, err)
		assert.Equal(t, s, pos.String())
	}
}

func TestParsePositionRejectsMalformed(t *testing.T) {
	_, err := ParsePosition("1A")
	assert.Error(t, err)

	_, err = ParsePosition("")
	assert.Error(t, err)
}

func TestIsValidBounds(t *testing.T) {
	assert.True(t, Position{Row: 0, Col: 0}.IsValid())
	assert.True(t, Position{Row: MaxRows - 1, Col: MaxCols - 1}.IsValid())
	assert.False(t, Position{Row: -1, Col: 0}.IsValid())
	assert.False(t, Position{Row: MaxRows, Col: 0}.IsValid())
}
