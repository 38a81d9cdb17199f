package render

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/colorgrad"
)

// colorFunc maps a normalized amplitude to a colour. Inputs outside
// [-1, 1] are clamped.
type colorFunc func(a float32) RGB

func (c Colormap) lookup() colorFunc {
	switch c {
	case Grayscale:
		return func(a float32) RGB { return grayRGB(grayLevel(a)) }
	case GrayscaleInverted:
		return func(a float32) RGB { return grayRGB(255 - grayLevel(a)) }
	case Viridis:
		grad := colorgrad.Viridis()
		return func(a float32) RGB {
			return fromColorful(grad.At(float64(nanToZero(clamp(a))+1) / 2))
		}
	default:
		return seismicRGB
	}
}

// RGBAt maps one amplitude through the colormap.
func (c Colormap) RGBAt(a float32) RGB {
	return c.lookup()(a)
}

// seismicRGB runs red at -1 through white at 0 to blue at +1.
func seismicRGB(a float32) RGB {
	a = nanToZero(clamp(a))
	if a < 0 {
		t := a + 1
		v := uint8(255 * t)
		return RGB{255, v, v}
	}
	v := uint8(255 * (1 - a))
	return RGB{v, v, 255}
}

func grayLevel(a float32) uint8 {
	return uint8((nanToZero(clamp(a)) + 1) * 127.5)
}

func grayRGB(v uint8) RGB {
	return RGB{v, v, v}
}

func nanToZero(a float32) float32 {
	if a != a {
		return 0
	}
	return a
}

func fromColorful(c colorful.Color) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB{r, g, b}
}
