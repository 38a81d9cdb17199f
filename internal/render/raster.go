package render

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// canvas is an opaque RGB raster backed by an NRGBA image.
type canvas struct {
	img *image.NRGBA
	w   int
	h   int
}

func newCanvas(w, h int, bg RGB) *canvas {
	img := imaging.New(w, h, color.NRGBA{R: bg[0], G: bg[1], B: bg[2], A: 255})
	return &canvas{img: img, w: w, h: h}
}

func wrapCanvas(img *image.NRGBA) *canvas {
	b := img.Bounds()
	return &canvas{img: img, w: b.Dx(), h: b.Dy()}
}

func (c *canvas) set(x, y int, col RGB) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	i := y*c.img.Stride + x*4
	p := c.img.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = col[0], col[1], col[2], 255
}

func (c *canvas) at(x, y int) RGB {
	i := y*c.img.Stride + x*4
	return RGB{c.img.Pix[i], c.img.Pix[i+1], c.img.Pix[i+2]}
}

// variableDensity paints one column per trace and one row per sample of
// the first trace. Cells a shorter trace does not cover stay black. The
// raster is resampled with a Lanczos filter when its natural size differs
// from the viewport.
func variableDensity(norm [][]float32, columns int, vp Viewport, cmap Colormap, workers int) *canvas {
	height := 0
	if len(norm) > 0 {
		height = len(norm[0])
	}
	if columns <= 0 || height == 0 {
		return newCanvas(vp.Width, vp.Height, black)
	}

	base := newCanvas(columns, height, black)
	lookup := cmap.lookup()
	parallelRange(columns, workers, func(start, end int) {
		for x := start; x < end && x < len(norm); x++ {
			trace := norm[x]
			for y := 0; y < height && y < len(trace); y++ {
				base.set(x, y, lookup(trace[y]))
			}
		}
	})

	if columns == vp.Width && height == vp.Height {
		return base
	}
	return wrapCanvas(imaging.Resize(base.img, vp.Width, vp.Height, imaging.Lanczos))
}

// wiggleLayout places traces across the canvas width and samples down its
// height.
type wiggleLayout struct {
	spacing  float32
	step     float32
	maxWidth float32
}

func newWiggleLayout(c *canvas, traces, samples int, excursion float32) wiggleLayout {
	spacing := float32(c.w) / float32(traces)
	return wiggleLayout{
		spacing:  spacing,
		step:     float32(c.h) / float32(samples),
		maxWidth: spacing * excursion,
	}
}

// drawWiggles draws every trace as a polyline around its centre column,
// filling lobes as cfg asks when fill is set.
func drawWiggles(c *canvas, norm [][]float32, cfg WiggleConfig, excursion float32, fill bool) {
	if len(norm) == 0 || len(norm[0]) == 0 {
		return
	}
	samples := len(norm[0])
	layout := newWiggleLayout(c, len(norm), samples, excursion)
	for ti, trace := range norm {
		center := (float32(ti) + 0.5) * layout.spacing
		for s := 0; s+1 < samples && s+1 < len(trace); s++ {
			y1 := float32(s) * layout.step
			y2 := float32(s+1) * layout.step
			a1, a2 := trace[s], trace[s+1]
			x1 := layout.offset(center, a1, c.w)
			x2 := layout.offset(center, a2, c.w)

			c.line(x1, y1, x2, y2, cfg.LineColor, cfg.LineWidth)
			if !fill {
				continue
			}
			quad := [4][2]float32{{center, y1}, {x1, y1}, {x2, y2}, {center, y2}}
			if cfg.FillPositive && a1 > 0 && a2 > 0 {
				c.fillPolygon(quad[:], cfg.PositiveFillColor)
			}
			if cfg.FillNegative && a1 < 0 && a2 < 0 {
				c.fillPolygon(quad[:], cfg.NegativeFillColor)
			}
		}
	}
}

// offset returns the x position of amplitude a, clamped to one canvas
// width beyond either edge.
func (l wiggleLayout) offset(center, a float32, width int) float32 {
	if a != a {
		a = 0
	}
	x := center + a*l.maxWidth
	lo, hi := -float32(width), 2*float32(width)
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func roundInt(v float32) int {
	return int(math.Round(float64(v)))
}

// line walks from (x0,y0) to (x1,y1) with Bresenham's algorithm after
// rounding the endpoints. Widths above one pixel stamp a filled disc of
// radius int(width/2) at every step.
func (c *canvas) line(x0f, y0f, x1f, y1f float32, col RGB, width float32) {
	x0, y0 := roundInt(x0f), roundInt(y0f)
	x1, y1 := roundInt(x1f), roundInt(y1f)

	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	radius := 0
	if width > 1 {
		radius = int(width / 2)
	}
	x, y := x0, y0
	for {
		c.stamp(x, y, radius, col)
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func (c *canvas) stamp(x, y, radius int, col RGB) {
	if radius == 0 {
		c.set(x, y, col)
		return
	}
	r2 := radius * radius
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			if dx*dx+dy*dy <= r2 {
				c.set(x+dx, y+dy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// fillPolygon fills a simple polygon by scanline. Each row y collects edge
// crossings on the half-open span [min(y1,y2), max(y1,y2)) and fills
// pixels ceil(xa)..floor(xb) between crossing pairs.
func (c *canvas) fillPolygon(pts [][2]float32, col RGB) {
	if len(pts) < 3 {
		return
	}
	minY, maxY := pts[0][1], pts[0][1]
	for _, p := range pts[1:] {
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	top := int(math.Floor(float64(minY)))
	bottom := int(math.Ceil(float64(maxY)))
	if top < 0 {
		top = 0
	}
	if bottom > c.h-1 {
		bottom = c.h - 1
	}

	xs := make([]float32, 0, 4)
	for y := top; y <= bottom; y++ {
		yf := float32(y)
		xs = xs[:0]
		for i := range pts {
			p1 := pts[i]
			p2 := pts[(i+1)%len(pts)]
			if (p1[1] <= yf && yf < p2[1]) || (p2[1] <= yf && yf < p1[1]) {
				xs = append(xs, p1[0]+(yf-p1[1])*(p2[0]-p1[0])/(p2[1]-p1[1]))
			}
		}
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		for i := 0; i+1 < len(xs); i += 2 {
			start := int(math.Ceil(float64(xs[i])))
			end := int(math.Floor(float64(xs[i+1])))
			if start < 0 {
				start = 0
			}
			if end > c.w-1 {
				end = c.w - 1
			}
			for x := start; x <= end; x++ {
				c.set(x, y, col)
			}
		}
	}
}
