package server

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/mithun50/silkynet/internal/counting"
)

const visualizationJPEGQuality = 85

// maskDataURL encodes the binary mask as a PNG data URL, rescaling {0,1}
// bits to an 8-bit grayscale image.
func maskDataURL(mask *counting.BinaryMask) (string, error) {
	img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for i, b := range mask.Bits {
		img.Pix[i] = b * 255
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode mask: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// visualizationDataURL encodes the overlay as a JPEG data URL.
func visualizationDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(visualizationJPEGQuality)); err != nil {
		return "", fmt.Errorf("encode visualization: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
