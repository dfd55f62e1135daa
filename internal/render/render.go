// Package render turns decoded temperature fields into the published PNG
// images: a fixed geographic sector resampled from the model grid, colored
// with the turbo colormap, with a run annotation in the top-left corner.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
)

// Sector is a geographic bounding box in degrees.
type Sector struct {
	West, East   float64
	South, North float64
}

// NortheastSector is the published view: the Northeast US.
var NortheastSector = Sector{West: -82, East: -66, South: 37, North: 48}

// Options controls rendering. Zero values select the published defaults.
type Options struct {
	Sector  Sector
	Width   int     // pixels; height follows the sector's aspect ratio
	MinTemp float64 // °F at the bottom of the color ramp
	MaxTemp float64 // °F at the top of the color ramp
	Label   string  // top-left annotation, e.g. "HRRR 2m Temperature | Run: 2024-04-26 12Z"
}

// background fills pixels with no data (outside the model grid).
var background = color.NRGBA{R: 10, G: 10, B: 10, A: 255}

func (o Options) withDefaults() Options {
	if o.Sector == (Sector{}) {
		o.Sector = NortheastSector
	}
	if o.Width == 0 {
		o.Width = 960
	}
	if o.MinTemp == 0 && o.MaxTemp == 0 {
		o.MinTemp, o.MaxTemp = 0, 100
	}
	return o
}

// Image resamples the field over the sector and colors it. Each output
// pixel is bilinearly sampled from the model grid at the pixel's
// geographic coordinates; pixels outside the grid keep the background.
func Image(field domain.TemperatureField, opts Options) (*image.NRGBA, error) {
	opts = opts.withDefaults()

	lonSpan := opts.Sector.East - opts.Sector.West
	latSpan := opts.Sector.North - opts.Sector.South
	if lonSpan <= 0 || latSpan <= 0 {
		return nil, fmt.Errorf("degenerate sector %+v", opts.Sector)
	}
	if opts.MaxTemp <= opts.MinTemp {
		return nil, fmt.Errorf("color ramp %g..%g is empty", opts.MinTemp, opts.MaxTemp)
	}

	width := opts.Width
	height := int(math.Round(float64(width) * latSpan / lonSpan))

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	for py := 0; py < height; py++ {
		// Row 0 is the sector's northern edge.
		lat := opts.Sector.North - latSpan*(float64(py)+0.5)/float64(height)
		for px := 0; px < width; px++ {
			lon := opts.Sector.West + lonSpan*(float64(px)+0.5)/float64(width)

			v := field.Sample(lat, lon)
			if math.IsNaN(v) {
				continue
			}
			t := (v - opts.MinTemp) / (opts.MaxTemp - opts.MinTemp)
			img.SetNRGBA(px, py, Turbo(t))
		}
	}

	if opts.Label != "" {
		drawLabel(img, opts.Label)
	}
	return img, nil
}

// PNG renders the field and encodes it.
func PNG(field domain.TemperatureField, opts Options) ([]byte, error) {
	img, err := Image(field, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLabel stamps text on a dark strip in the top-left corner.
func drawLabel(img *image.NRGBA, text string) {
	face := basicfont.Face7x13
	pad := 6
	w := font.MeasureString(face, text).Ceil() + 2*pad
	h := face.Height + 2*pad

	strip := image.Rect(0, 0, w, h)
	draw.Draw(img, strip, image.NewUniform(color.NRGBA{A: 200}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: face,
		Dot:  fixed.P(pad, pad+face.Ascent),
	}
	d.DrawString(text)
}
