// Package guide draws the curves editor's reference panel: the three
// channel histograms overlaid, the identity diagonal and the current curve.
package guide

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"tone-curve-agent/internal/tone"
)

// Size is the panel edge in pixels; one column per intensity level.
const Size = tone.Levels

const (
	barAlpha    = 0.65
	handleR     = 5
	diagonalW   = 3
	curveStroke = 1
)

var channelColors = [...]color.NRGBA{
	tone.Red:   {R: 255, A: 255},
	tone.Green: {G: 255, A: 255},
	tone.Blue:  {B: 255, A: 255},
}

type Options struct {
	Background color.Color
	// Histogram may be nil to draw the curve alone.
	Histogram *tone.Histogram
}

// Render draws the panel for curve. Y grows downward, so an output level o
// sits at row Size-1-o.
func Render(curve tone.CurveState, opts Options) image.Image {
	return draw(curve, opts).Image()
}

func RenderPNG(curve tone.CurveState, opts Options) ([]byte, error) {
	var b bytes.Buffer
	if err := draw(curve, opts).EncodePNG(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func draw(curve tone.CurveState, opts Options) *gg.Context {
	dc := gg.NewContext(Size, Size)
	if opts.Background != nil {
		dc.SetColor(opts.Background)
		dc.Clear()
	}

	if opts.Histogram != nil {
		bars := opts.Histogram.Bars(Size)
		for _, c := range tone.Channels {
			col := channelColors[c]
			dc.SetRGBA255(int(col.R), int(col.G), int(col.B), int(math.Floor(barAlpha*255)))
			for i, h := range bars[c] {
				if h == 0 {
					continue
				}
				dc.DrawRectangle(float64(i), float64(Size-h), 1, float64(h))
			}
			dc.Fill()
		}
	}

	top := float64(Size - 1)
	dc.SetLineWidth(diagonalW)
	dc.SetRGB(0, 0, 1)
	dc.DrawLine(0, top, top, 0)
	dc.Stroke()

	ex, ey := float64(curve.Enter.In), top-float64(curve.Enter.Out)
	xx, xy := float64(curve.Exit.In), top-float64(curve.Exit.Out)

	dc.SetLineWidth(curveStroke)
	dc.SetRGB(0, 0, 0)
	dc.MoveTo(0, ey)
	dc.LineTo(ex, ey)
	dc.LineTo(xx, xy)
	dc.LineTo(top, xy)
	dc.Stroke()
	dc.DrawCircle(ex, ey, handleR)
	dc.Stroke()
	dc.DrawCircle(xx, xy, handleR)
	dc.Stroke()

	return dc
}
