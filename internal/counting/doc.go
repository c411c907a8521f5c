// Package counting turns a binary segmentation mask into a discrete
// organism count.
//
// The pipeline post-processes a per-pixel probability grid produced by an
// external segmentation model: it binarizes the grid, extracts closed
// boundary contours, classifies each contour by area relative to the
// per-image median, separates merged organisms with a distance-transform
// watershed, and derives a scalar confidence score from the artifact and
// overlap ratios.
//
// Every operation is a pure function of its inputs; no state is carried
// between images and no locking is required. Intermediate buffers are
// scoped to a single call.
package counting
