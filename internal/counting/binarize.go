package counting

// DefaultBinarizeThreshold is the second-stage threshold applied to the
// 8-bit intensity image before contour extraction.
const DefaultBinarizeThreshold uint8 = 200

// Binarize converts a probability grid into a {0, 1} mask by thresholding
// each pixel at 0.5.
func Binarize(pm *ProbabilityMask) *BinaryMask {
	out := &BinaryMask{
		Width:  pm.Width,
		Height: pm.Height,
		Bits:   make([]uint8, len(pm.Values)),
	}
	for i, v := range pm.Values {
		if v > 0.5 {
			out.Bits[i] = 1
		}
	}
	return out
}

// Threshold rescales a binary mask to an 8-bit intensity image (value*255)
// and applies a second threshold at the given level, keeping pixels whose
// intensity is strictly greater.
//
// The two-stage thresholding looks redundant at the default level of 200,
// but the second level is independently configurable and changes behavior
// when raised to 255 or beyond the rescaled range. Collapsing it into the
// 0.5 comparison would alter the contract.
func Threshold(m *BinaryMask, level uint8) *Bitmap {
	out := &Bitmap{
		Width:  m.Width,
		Height: m.Height,
		Pix:    make([]uint8, len(m.Bits)),
	}
	for i, b := range m.Bits {
		if b*255 > level {
			out.Pix[i] = 255
		}
	}
	return out
}
