package counting

import "math"

// Classification buckets a contour by its area relative to the per-image
// median. Contours that match none of the thresholds stay ClassNone and are
// counted as individuals only through the arithmetic complement in the
// final tally; there is no explicit individual tag.
type Classification int

const (
	// ClassNone marks a contour no threshold matched.
	ClassNone Classification = iota

	// ClassArtifact marks sub-threshold noise (area < 0.2 x median).
	ClassArtifact

	// ClassPartial marks organisms cut off at the frame edge
	// (0.2 x median <= area < 0.5 x median).
	ClassPartial

	// ClassOverlapped marks merged organisms (area > median).
	ClassOverlapped
)

// String returns a short lowercase name for the classification.
func (c Classification) String() string {
	switch c {
	case ClassArtifact:
		return "artifact"
	case ClassPartial:
		return "partial"
	case ClassOverlapped:
		return "overlapped"
	default:
		return "none"
	}
}

// Contour is an ordered closed boundary curve of one connected foreground
// region. Contours are extracted fresh per call and carry no identity
// across calls.
type Contour struct {
	// Points is the closed boundary pixel chain, starting at the
	// topmost-leftmost pixel of the region.
	Points []Point `json:"points"`

	// Area is the magnitude of the signed polygon area of the boundary
	// chain (shoelace formula). Thin curves have near-zero area even
	// though they cover pixels.
	Area float64 `json:"area"`

	// Class is assigned by Classify; zero value means unclassified.
	Class Classification `json:"class"`
}

// Moore neighborhood in clockwise order for screen coordinates (y grows
// down): W, NW, N, NE, E, SE, S, SW. Consecutive entries are themselves
// grid-adjacent, which the tracer relies on.
var mooreDirs = [8]Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// ExtractContours finds the outer boundary of every 8-connected foreground
// region in the thresholded image, in row-major scan order.
//
// Each boundary is traced with Suzuki-style border following from the
// region's topmost-leftmost pixel. An empty image yields an empty slice,
// not an error.
func ExtractContours(b *Bitmap) []Contour {
	if b == nil || b.Width == 0 || b.Height == 0 {
		return nil
	}

	seen := make([]bool, b.Width*b.Height)
	contours := make([]Contour, 0)

	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			idx := y*b.Width + x
			if b.Pix[idx] == 0 || seen[idx] {
				continue
			}
			markRegion(b, seen, x, y)
			points := traceBoundary(b, Point{X: x, Y: y})
			contours = append(contours, Contour{
				Points: points,
				Area:   polygonArea(points),
			})
		}
	}

	return contours
}

// markRegion flood-fills the 8-connected region containing (x, y) in the
// seen buffer so the scan does not trace it twice. Stack-based to avoid
// recursion depth limits on large regions.
func markRegion(b *Bitmap, seen []bool, x, y int) {
	stack := []Point{{X: x, Y: y}}
	seen[y*b.Width+x] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, d := range mooreDirs {
			nx, ny := p.X+d.X, p.Y+d.Y
			if !b.Foreground(nx, ny) {
				continue
			}
			idx := ny*b.Width + nx
			if seen[idx] {
				continue
			}
			seen[idx] = true
			stack = append(stack, Point{X: nx, Y: ny})
		}
	}
}

// dirIndex returns the ring position of neighbor q around p. The caller
// guarantees q is one of the eight neighbors of p.
func dirIndex(p, q Point) int {
	for i, d := range mooreDirs {
		if p.X+d.X == q.X && p.Y+d.Y == q.Y {
			return i
		}
	}
	return 0
}

// traceBoundary walks the outer boundary of the region whose
// topmost-leftmost pixel is start, using the border-following step of
// Suzuki and Abe. The scan order guarantees the west neighbor of start is
// background, which seeds the search.
func traceBoundary(b *Bitmap, start Point) []Point {
	// Clockwise scan from the west neighbor for the first foreground
	// pixel around start.
	first := Point{}
	found := false
	for i := 1; i <= 8; i++ {
		d := mooreDirs[i%8]
		n := Point{X: start.X + d.X, Y: start.Y + d.Y}
		if b.Foreground(n.X, n.Y) {
			first = n
			found = true
			break
		}
	}
	if !found {
		// Isolated pixel.
		return []Point{start}
	}

	points := make([]Point, 0, 16)
	prev := first // examined neighbor the scan resumes after
	cur := start

	// A closed border never exceeds 4x the pixel count; the bound only
	// guards against a broken bitmap.
	for step := 0; step < 4*b.Width*b.Height; step++ {
		// Counterclockwise scan around cur, starting just past prev.
		pi := dirIndex(cur, prev)
		next := Point{}
		for i := 1; i <= 8; i++ {
			d := mooreDirs[((pi-i)%8+8)%8]
			n := Point{X: cur.X + d.X, Y: cur.Y + d.Y}
			if b.Foreground(n.X, n.Y) {
				next = n
				break
			}
		}

		points = append(points, cur)
		if next == start && cur == first {
			return points
		}
		prev = cur
		cur = next
	}

	return points
}

// polygonArea computes the magnitude of the signed area of a closed pixel
// chain via the shoelace boundary integral. Chains shorter than three
// points enclose nothing.
func polygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += float64(pts[i].X*pts[j].Y - pts[j].X*pts[i].Y)
	}
	return math.Abs(sum) / 2
}
