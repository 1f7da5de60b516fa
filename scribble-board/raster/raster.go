// Package raster paints strokes onto a PNG snapshot.
package raster

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/fogleman/gg"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
)

const (
	DefaultWidth      = 1024
	DefaultHeight     = 768
	DefaultBackground = "#ffffff"
)

// Rasterizer paints strokes, in order, over a base PNG (or a blank canvas when
// base is empty) and returns the encoded result.
type Rasterizer interface {
	Render(base []byte, strokes []scribbleboard.Stroke) ([]byte, error)
}

// GG renders with github.com/fogleman/gg.
type GG struct {
	Width      int
	Height     int
	Background string
}

// New returns a GG rasterizer with the default canvas.
func New() GG {
	return GG{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Background: DefaultBackground,
	}
}

func (r GG) Render(base []byte, strokes []scribbleboard.Stroke) ([]byte, error) {
	dc, err := r.canvas(base)
	if err != nil {
		return nil, err
	}

	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	for i, s := range strokes {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("stroke %v: %w", i, err)
		}
		red, green, blue, alpha, _ := scribbleboard.ParseColor(s.Color)
		dc.SetRGBA255(int(red), int(green), int(blue), int(alpha))
		dc.SetLineWidth(s.Width)

		if len(s.Points) == 2 {
			dc.DrawCircle(s.Points[0], s.Points[1], s.Width/2)
			dc.Fill()
			continue
		}

		dc.MoveTo(s.Points[0], s.Points[1])
		for j := 2; j+1 < len(s.Points); j += 2 {
			dc.LineTo(s.Points[j], s.Points[j+1])
		}
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (r GG) canvas(base []byte) (*gg.Context, error) {
	if len(base) > 0 {
		img, err := png.Decode(bytes.NewReader(base))
		if err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		return gg.NewContextForImage(img), nil
	}

	width, height := r.Width, r.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	dc := gg.NewContext(width, height)
	background := r.Background
	if background == "" {
		background = DefaultBackground
	}
	dc.SetHexColor(background)
	dc.Clear()
	return dc, nil
}
