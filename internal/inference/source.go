// Package inference connects the counting core to the external
// segmentation model. The model itself is an opaque collaborator: a
// MaskSource turns an image into a per-pixel probability grid, and the
// rest of the system never learns how.
package inference

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/mithun50/silkynet/internal/counting"
)

// MaskSource produces a probability mask for an image. Implementations
// are constructed at startup and injected into their consumers; there is
// no lazily-initialized global model handle.
//
// A MaskSource may wrap a shared, possibly non-thread-safe model, so it
// owns its own concurrency bound. Callers processing batches in parallel
// rely on that bound rather than adding their own.
type MaskSource interface {
	MaskFor(ctx context.Context, img image.Image) (*counting.ProbabilityMask, error)
}

// Pinger is implemented by sources that can report reachability of the
// backing model, for health endpoints.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ImageSource derives probabilities directly from image luminance: the
// input is resized to the grid size, converted to grayscale and scaled
// into [0, 1]. It exists for tests and for counting pre-rendered masks
// without a model behind them.
type ImageSource struct {
	width  int
	height int
}

// NewImageSource returns an ImageSource producing width x height grids.
func NewImageSource(width, height int) *ImageSource {
	return &ImageSource{width: width, height: height}
}

// MaskFor converts the image to a probability grid. It never fails and
// ignores the context; the signature exists to satisfy MaskSource.
func (s *ImageSource) MaskFor(_ context.Context, img image.Image) (*counting.ProbabilityMask, error) {
	gray := imaging.Grayscale(imaging.Resize(img, s.width, s.height, imaging.Lanczos))

	pm := counting.NewProbabilityMask(s.width, s.height)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			pm.Set(x, y, float64(gray.NRGBAAt(x, y).R)/255.0)
		}
	}
	return pm, nil
}
