// Package render turns decoded trace samples into variable-density and
// wiggle images encoded as PNG.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"example.com/segyview/internal/segy"
)

const (
	FormatPNG = "png"

	wiggleExcursion  = 0.4
	overlayExcursion = 0.3
)

// TraceLoader is the part of segy.Reader a render needs.
type TraceLoader interface {
	LoadTraceDataRange(start, count, maxSamples int) ([]segy.TraceData, error)
}

// Render normalizes traces, rasterizes them in cfg.Mode and encodes the
// result as PNG. Every call is independent.
func Render(traces []segy.TraceData, cfg Config) (*Image, error) {
	img, err := Rasterize(traces, cfg)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// RenderFrom loads the viewport's trace window at full sample count and
// renders it.
func RenderFrom(src TraceLoader, cfg Config) (*Image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	traces, err := src.LoadTraceDataRange(cfg.Viewport.StartTrace, cfg.Viewport.TraceCount, 0)
	if err != nil {
		return nil, err
	}
	return Render(traces, cfg)
}

// Rasterize produces the unencoded image.
func Rasterize(traces []segy.TraceData, cfg Config) (*image.NRGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	norm, err := Normalize(traces, cfg.Scaling, cfg.Workers)
	if err != nil {
		return nil, err
	}

	vp := cfg.Viewport
	switch cfg.Mode {
	case VariableDensity:
		columns := vp.TraceCount
		if columns == 0 {
			columns = len(norm)
		}
		return variableDensity(norm, columns, vp, cfg.Colormap, cfg.Workers).img, nil
	case Wiggle:
		c := newCanvas(vp.Width, vp.Height, white)
		drawWiggles(c, norm, cfg.wiggle(), wiggleExcursion, true)
		return c.img, nil
	case WiggleVariableDensity:
		c := variableDensity(norm, len(norm), vp, cfg.Colormap, cfg.Workers)
		drawWiggles(c, norm, cfg.wiggle(), overlayExcursion, false)
		return c.img, nil
	}
	return nil, configError("unknown render mode %d", int(cfg.Mode))
}

// EncodePNG writes img as an 8-bit RGB PNG at the fastest compression level.
func EncodePNG(img *image.NRGBA) (*Image, error) {
	b := img.Bounds()
	opaque := &image.NRGBA{Pix: append([]byte(nil), img.Pix...), Stride: img.Stride, Rect: img.Rect}
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}
	var buf bytes.Buffer
	buf.Grow(b.Dx() * b.Dy() * 3)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, opaque); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return &Image{Width: b.Dx(), Height: b.Dy(), Data: buf.Bytes(), Format: FormatPNG}, nil
}
