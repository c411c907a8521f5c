package counting

import "fmt"

// Point represents a 2D pixel coordinate.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// ProbabilityMask is a dense 2D grid of per-pixel foreground probabilities
// in [0, 1], stored row-major. It is produced by the external segmentation
// model and treated as read-only here.
type ProbabilityMask struct {
	Width  int
	Height int

	// Values holds Width*Height probabilities, row-major.
	Values []float64
}

// NewProbabilityMask allocates a zeroed probability grid.
func NewProbabilityMask(width, height int) *ProbabilityMask {
	return &ProbabilityMask{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
}

// At returns the probability at (x, y). No bounds checking is performed.
func (m *ProbabilityMask) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Set stores a probability at (x, y). No bounds checking is performed.
func (m *ProbabilityMask) Set(x, y int, v float64) {
	m.Values[y*m.Width+x] = v
}

// Validate checks the grid against an expected size and its own backing
// slice. A mismatch is a contract violation by the caller.
func (m *ProbabilityMask) Validate(width, height int) error {
	if m.Width != width || m.Height != height {
		return fmt.Errorf("%w: got %dx%d, configured %dx%d",
			ErrDimensionMismatch, m.Width, m.Height, width, height)
	}
	if len(m.Values) != m.Width*m.Height {
		return fmt.Errorf("probability mask has %d values for %dx%d grid",
			len(m.Values), m.Width, m.Height)
	}
	return nil
}

// BinaryMask is a dense 2D grid of {0, 1} values, same dimensions as the
// probability mask it was derived from. Immutable once produced.
type BinaryMask struct {
	Width  int
	Height int

	// Bits holds Width*Height values, each 0 or 1, row-major.
	Bits []uint8
}

// At returns the bit at (x, y). No bounds checking is performed.
func (m *BinaryMask) At(x, y int) uint8 {
	return m.Bits[y*m.Width+x]
}

// Bitmap is an 8-bit single-channel intensity image with values 0 or 255,
// the intermediate representation consumed by contour extraction.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

// At returns the intensity at (x, y). No bounds checking is performed.
func (b *Bitmap) At(x, y int) uint8 {
	return b.Pix[y*b.Width+x]
}

// Foreground reports whether the pixel at (x, y) is foreground, treating
// out-of-bounds coordinates as background.
func (b *Bitmap) Foreground(x, y int) bool {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return false
	}
	return b.Pix[y*b.Width+x] != 0
}
