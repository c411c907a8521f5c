package counting

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// DefaultWatershedWindow is the side length of the non-maximum-suppression
// neighborhood used when picking watershed seed peaks. Two peaks closer
// than roughly this window collapse into one seed.
const DefaultWatershedWindow = 5

// SeparationResult reports the outcome of overlap separation.
//
// Degraded distinguishes "the watershed ran and found nothing extra" from
// "the watershed could not be completed": both yield zero additional
// organisms, but the caller may want to surface the difference.
type SeparationResult struct {
	// Additional is the number of organisms discovered beyond the
	// original merged-contour count. Never negative.
	Additional int `json:"additional_separated"`

	// Degraded is true when separation failed and the result fell back
	// to zero.
	Degraded bool `json:"separation_degraded,omitempty"`
}

// Separate estimates how many individual organisms are merged inside the
// contours classified as overlapped.
//
// The overlapped contours are rasterized into a fresh mask with the
// dimensions of the thresholded image, a Euclidean distance field is
// computed over that mask, local maxima of the field (5x5 non-maximum
// suppression by default) become watershed markers, and a priority flood
// over the negated field partitions the mask into basins. Only the excess
// basins beyond the original contour count are credited:
//
//	additional = max(0, basins - len(overlapped))
//
// An empty overlapped slice short-circuits to a clean zero. Any failure
// inside the stages is logged as a warning and degrades to zero rather
// than aborting the pipeline: each merged contour then counts as a single
// organism.
func Separate(b *Bitmap, overlapped []Contour, window int, log *zap.Logger) SeparationResult {
	if len(overlapped) == 0 {
		return SeparationResult{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if window <= 0 {
		window = DefaultWatershedWindow
	}

	additional, err := separate(b, overlapped, window)
	if err != nil {
		log.Warn("overlap separation failed, counting merged contours as single organisms",
			zap.Int("overlapped_contours", len(overlapped)),
			zap.Error(err))
		return SeparationResult{Degraded: true}
	}
	return SeparationResult{Additional: additional}
}

func separate(b *Bitmap, overlapped []Contour, window int) (additional int, err error) {
	// The stages below validate their inputs, but a malformed boundary
	// chain can still drive index arithmetic out of range; degrade
	// instead of unwinding through the pipeline.
	defer func() {
		if r := recover(); r != nil {
			additional = 0
			err = fmt.Errorf("watershed panic: %v", r)
		}
	}()

	raster, err := rasterizeContours(b, overlapped)
	if err != nil {
		return 0, err
	}

	dist := distanceTransform(raster)

	peaks := findPeaks(dist, raster, window)
	markers, markerCount := labelMarkers(peaks, raster.Width, raster.Height)
	if markerCount == 0 {
		return 0, nil
	}

	labels := watershedFlood(dist, markers, raster)

	separated := countLabels(labels)
	if separated > len(overlapped) {
		return separated - len(overlapped), nil
	}
	return 0, nil
}

// rasterizeContours fills the interiors of the given boundary chains into
// a fresh mask of the same dimensions as the source image. Interiors are
// filled with an even-odd scanline rule; the boundary pixels themselves
// are always set.
func rasterizeContours(b *Bitmap, contours []Contour) (*Bitmap, error) {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return nil, fmt.Errorf("rasterize: empty source image")
	}

	out := &Bitmap{Width: b.Width, Height: b.Height, Pix: make([]uint8, b.Width*b.Height)}

	for ci, c := range contours {
		if len(c.Points) == 0 {
			return nil, fmt.Errorf("rasterize: contour %d has no boundary points", ci)
		}
		for _, p := range c.Points {
			if p.X < 0 || p.X >= b.Width || p.Y < 0 || p.Y >= b.Height {
				return nil, fmt.Errorf("rasterize: contour %d point (%d,%d) outside %dx%d",
					ci, p.X, p.Y, b.Width, b.Height)
			}
			out.Pix[p.Y*out.Width+p.X] = 255
		}
		fillContour(out, c.Points)
	}

	return out, nil
}

// fillContour applies an even-odd scanline fill to a closed pixel chain.
// Every boundary edge is a unit step, so a scanline crosses an edge at the
// x of its upper endpoint.
func fillContour(out *Bitmap, pts []Point) {
	if len(pts) < 3 {
		return
	}

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	xs := make([]int, 0, 8)
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i := range pts {
			p, q := pts[i], pts[(i+1)%len(pts)]
			if p.Y == q.Y {
				continue
			}
			// Half-open span [min(p.Y,q.Y), max(p.Y,q.Y)).
			if p.Y < q.Y {
				if p.Y <= y && y < q.Y {
					xs = append(xs, p.X)
				}
			} else {
				if q.Y <= y && y < p.Y {
					xs = append(xs, q.X)
				}
			}
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for x := xs[i]; x < xs[i+1]; x++ {
				out.Pix[y*out.Width+x] = 255
			}
		}
	}
}

const dtInf = 1e20

// distanceTransform computes the exact Euclidean distance from every
// foreground pixel to the nearest background pixel using the two-pass
// squared-distance algorithm of Felzenszwalb and Huttenlocher, one 1D
// pass over columns and one over rows.
func distanceTransform(b *Bitmap) []float64 {
	w, h := b.Width, b.Height
	n := w * h

	f := make([]float64, n)
	for i, p := range b.Pix {
		if p != 0 {
			f[i] = dtInf
		}
	}

	size := w
	if h > size {
		size = h
	}
	col := make([]float64, size)
	d := make([]float64, size)
	v := make([]int, size)
	z := make([]float64, size+1)

	// Columns.
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = f[y*w+x]
		}
		dtOneDim(col[:h], d[:h], v[:h], z[:h+1])
		for y := 0; y < h; y++ {
			f[y*w+x] = d[y]
		}
	}

	// Rows.
	for y := 0; y < h; y++ {
		copy(col[:w], f[y*w:(y+1)*w])
		dtOneDim(col[:w], d[:w], v[:w], z[:w+1])
		for x := 0; x < w; x++ {
			f[y*w+x] = math.Sqrt(d[x])
		}
	}

	return f
}

// dtOneDim is the 1D squared-distance transform over a sampled function f,
// writing the result to d. v and z are scratch for the parabola envelope.
func dtOneDim(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = -dtInf
	z[1] = dtInf

	for q := 1; q < n; q++ {
		s := sep(f, q, v[k])
		for s <= z[k] {
			k--
			s = sep(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = dtInf
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

// sep is the crossing point of the parabolas rooted at q and p.
func sep(f []float64, q, p int) float64 {
	fq, fp := float64(q), float64(p)
	return ((f[q] + fq*fq) - (f[p] + fp*fp)) / (2*fq - 2*fp)
}

// findPeaks marks foreground pixels whose distance value is maximal within
// the window x window neighborhood around them. Plateau pixels all become
// peaks; marker labeling merges connected ones into a single seed.
func findPeaks(dist []float64, b *Bitmap, window int) []bool {
	w, h := b.Width, b.Height
	r := window / 2
	peaks := make([]bool, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			v := dist[idx]
			if b.Pix[idx] == 0 || v <= 0 {
				continue
			}
			isMax := true
			for dy := -r; dy <= r && isMax; dy++ {
				for dx := -r; dx <= r; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					if dist[ny*w+nx] > v {
						isMax = false
						break
					}
				}
			}
			peaks[idx] = isMax
		}
	}

	return peaks
}

// labelMarkers groups 8-connected peak pixels into markers, assigning
// labels 1..n in row-major scan order so labeling is deterministic.
func labelMarkers(peaks []bool, w, h int) ([]int32, int) {
	labels := make([]int32, w*h)
	next := int32(0)

	var stack []int
	for start, isPeak := range peaks {
		if !isPeak || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		stack = append(stack[:0], start)

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w

			for _, d := range mooreDirs {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if peaks[nidx] && labels[nidx] == 0 {
					labels[nidx] = next
					stack = append(stack, nidx)
				}
			}
		}
	}

	return labels, int(next)
}

// floodItem is one pixel queued for the watershed flood. seq breaks ties
// between equal heights so label growth is deterministic.
type floodItem struct {
	height float64
	seq    int
	idx    int
}

// floodQueue pops the highest distance first (the flood runs over the
// negated field, so basins grow downhill from the peaks).
type floodQueue []floodItem

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].height != q[j].height {
		return q[i].height > q[j].height
	}
	return q[i].seq < q[j].seq
}
func (q floodQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x interface{}) { *q = append(*q, x.(floodItem)) }
func (q *floodQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// watershedFlood grows each marker into a basin over the distance field,
// restricted to the foreground of the raster mask. Pixels are claimed in
// order of decreasing field height, so boundaries fall along the valleys
// between peaks.
func watershedFlood(dist []float64, markers []int32, b *Bitmap) []int32 {
	w, h := b.Width, b.Height
	labels := make([]int32, len(markers))
	copy(labels, markers)

	q := make(floodQueue, 0, 64)
	seq := 0
	for idx, l := range markers {
		if l != 0 {
			q = append(q, floodItem{height: dist[idx], seq: seq, idx: idx})
			seq++
		}
	}
	heap.Init(&q)

	var neighbors = [4]Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

	for q.Len() > 0 {
		it := heap.Pop(&q).(floodItem)
		x, y := it.idx%w, it.idx/w

		for _, d := range neighbors {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if b.Pix[nidx] == 0 || labels[nidx] != 0 {
				continue
			}
			labels[nidx] = labels[it.idx]
			seq++
			heap.Push(&q, floodItem{height: dist[nidx], seq: seq, idx: nidx})
		}
	}

	return labels
}

// countLabels counts distinct non-background labels in a watershed
// labeling.
func countLabels(labels []int32) int {
	seen := make(map[int32]struct{})
	for _, l := range labels {
		if l != 0 {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}
