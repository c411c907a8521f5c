// Package render produces human-viewable overlays from counting results.
// It is purely presentational: nothing here feeds back into the counts,
// and callers are free to skip rendering entirely.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mithun50/silkynet/internal/counting"
)

// Fixed accent colors and weights of the overlay. The mask tint keeps 60%
// of the original pixel; contour strokes are drawn 2 pixels wide.
const (
	maskAccentHex    = "#00FF00"
	contourAccentHex = "#FF0000"
	maskOpacity      = 0.4
	strokeRadius     = 1.0
)

// Overlay renders the original image with the segmentation mask tinted in
// the mask accent and every contour stroked in the contour accent with
// anti-aliased 2-pixel-wide lines.
//
// The original is resized to the mask dimensions first, so any input size
// is accepted here even though the counting core is strict about its own
// grid.
func Overlay(original image.Image, mask *counting.BinaryMask, contours []counting.Contour) (*image.NRGBA, error) {
	if original == nil {
		return nil, fmt.Errorf("render: nil original image")
	}
	if mask == nil || mask.Width <= 0 || mask.Height <= 0 {
		return nil, fmt.Errorf("render: empty mask")
	}

	maskAccent, err := colorful.Hex(maskAccentHex)
	if err != nil {
		return nil, fmt.Errorf("render: bad mask accent: %w", err)
	}
	contourAccent, err := colorful.Hex(contourAccentHex)
	if err != nil {
		return nil, fmt.Errorf("render: bad contour accent: %w", err)
	}

	resized := imaging.Resize(original, mask.Width, mask.Height, imaging.Lanczos)

	// Pre-blend the whole frame with a solid accent layer, then keep the
	// blended pixels only where the mask is foreground.
	tint := imaging.New(mask.Width, mask.Height, toNRGBA(maskAccent))
	blended := blend.Opacity(resized, tint, maskOpacity)

	out := image.NewNRGBA(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) != 0 {
				out.Set(x, y, blended.RGBAAt(x, y))
			} else {
				out.SetNRGBA(x, y, resized.NRGBAAt(x, y))
			}
		}
	}

	stroke := toNRGBA(contourAccent)
	for _, c := range contours {
		for _, p := range c.Points {
			stampDot(out, p.X, p.Y, stroke)
		}
	}

	return out, nil
}

// stampDot draws one anti-aliased dot of radius strokeRadius, alpha
// blending by pixel coverage so consecutive boundary points form a smooth
// 2-pixel-wide stroke.
func stampDot(img *image.NRGBA, cx, cy int, c color.NRGBA) {
	r := int(math.Ceil(strokeRadius + 0.5))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
				continue
			}
			d := math.Hypot(float64(dx), float64(dy))
			cover := strokeRadius + 0.5 - d
			if cover <= 0 {
				continue
			}
			if cover > 1 {
				cover = 1
			}
			dst := img.NRGBAAt(x, y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: mix(dst.R, c.R, cover),
				G: mix(dst.G, c.G, cover),
				B: mix(dst.B, c.B, cover),
				A: 255,
			})
		}
	}
}

func mix(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t + 0.5)
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
