package pageconv

import (
	"image"

	"golang.org/x/image/draw"
)

// resize bounds the longest side to MaxDim with high-quality resampling.
// Images below MinDim are upscaled, capped at 2x so low-resolution scans
// are not blown up into blur.
func (c *Converter) resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}

	var scale float64
	switch {
	case longest > c.cfg.MaxDim:
		scale = float64(c.cfg.MaxDim) / float64(longest)
	case longest < c.cfg.MinDim:
		scale = float64(c.cfg.MinDim) / float64(longest)
		if scale > 2.0 {
			scale = 2.0
		}
	default:
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
