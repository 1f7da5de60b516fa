package scribbleboard

import (
	"math"
	"testing"

	"github.com/tj/assert"
)

func TestStrokeValidate(t *testing.T) {
	testCases := map[string]struct {
		stroke Stroke
		ok     bool
	}{
		"line":            {Stroke{Points: []float64{0, 0, 10, 10}, Color: "#ff0000", Width: 2}, true},
		"dot":             {Stroke{Points: []float64{5, 5}, Color: "#000", Width: 1}, true},
		"alpha":           {Stroke{Points: []float64{5, 5}, Color: "#00000080", Width: 1}, true},
		"no points":       {Stroke{Color: "#000", Width: 1}, false},
		"odd coordinates": {Stroke{Points: []float64{1, 2, 3}, Color: "#000", Width: 1}, false},
		"nan":             {Stroke{Points: []float64{math.NaN(), 1}, Color: "#000", Width: 1}, false},
		"zero width":      {Stroke{Points: []float64{1, 1}, Color: "#000", Width: 0}, false},
		"huge width":      {Stroke{Points: []float64{1, 1}, Color: "#000", Width: 500}, false},
		"bad color":       {Stroke{Points: []float64{1, 1}, Color: "red", Width: 1}, false},
		"bad hex":         {Stroke{Points: []float64{1, 1}, Color: "#zzzzzz", Width: 1}, false},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := tc.stroke.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsMalformed(err))
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	r, g, b, a, err := ParseColor("#ff8000")
	assert.NoError(t, err)
	assert.Equal(t, []uint8{255, 128, 0, 255}, []uint8{r, g, b, a})

	r, g, b, a, err = ParseColor("#0f0")
	assert.NoError(t, err)
	assert.Equal(t, []uint8{0, 255, 0, 255}, []uint8{r, g, b, a})

	_, _, _, a, err = ParseColor("#00000080")
	assert.NoError(t, err)
	assert.EqualValues(t, 128, a)
}
