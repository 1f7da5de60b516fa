package scribbleboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxStrokeWidth bounds the width a client may request.
const MaxStrokeWidth = 100

// Stroke is a single polyline drawn by a client. Points holds flattened x,y
// pairs: [x0, y0, x1, y1, ...].
type Stroke struct {
	Points []float64 `json:"points"`
	Color  string    `json:"color"`
	Width  float64   `json:"width"`
}

// Validate rejects strokes the rasterizer can't paint.
func (s Stroke) Validate() error {
	if len(s.Points) < 2 {
		return Malformed("stroke needs at least one point", nil)
	}
	if len(s.Points)%2 != 0 {
		return Malformed(fmt.Sprintf("stroke has an odd number of coordinates, %v", len(s.Points)), nil)
	}
	for _, p := range s.Points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Malformed("stroke has a non-finite coordinate", nil)
		}
	}
	if !(s.Width > 0 && s.Width <= MaxStrokeWidth) {
		return Malformed(fmt.Sprintf("stroke width %v out of range", s.Width), nil)
	}
	if _, _, _, _, err := ParseColor(s.Color); err != nil {
		return Malformed("stroke color", err)
	}
	return nil
}

// ParseColor parses #rgb, #rrggbb and #rrggbbaa colours.
func ParseColor(hex string) (r, g, b, a uint8, err error) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) == len(hex) {
		return 0, 0, 0, 0, fmt.Errorf("color %q must start with #", hex)
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return 0, 0, 0, 0, fmt.Errorf("color %q has unsupported length", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("color %q: %w", hex, err)
	}
	return uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
