package counting

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Classification thresholds relative to the per-image median area. The
// band [0.5x, 1.0x] deliberately matches no bucket: those contours are
// counted as individuals only through the arithmetic complement.
const (
	artifactFraction = 0.2
	partialFraction  = 0.5
)

// AreaStats summarizes the contour-area distribution of one image.
type AreaStats struct {
	// Median is the middle of the sorted area list; an even count
	// averages the two middle values. It is the sole normalization
	// scale for classification.
	Median float64 `json:"median_area"`

	// Mean and StdDev describe the same distribution for reporting;
	// they play no part in classification.
	Mean   float64 `json:"mean_area"`
	StdDev float64 `json:"stddev_area"`
}

// Tally is the outcome of classifying one image's contours.
type Tally struct {
	Artifacts  int
	Partial    int
	Overlapped int

	// OverlappedContours holds the contours bucketed as overlapped, in
	// extraction order, for the separation stage.
	OverlappedContours []Contour

	Stats AreaStats
}

// Classify buckets every contour by area relative to the median and tags
// it in place:
//
//	area < 0.2 x median            -> artifact
//	0.2 x median <= a < 0.5 x median -> partial
//	area > median                  -> overlapped
//
// Anything else keeps its zero classification. Classification is scale
// invariant: scaling all areas by a positive constant moves the median by
// the same factor and changes no bucket. An empty contour slice returns a
// zero Tally.
func Classify(contours []Contour) Tally {
	if len(contours) == 0 {
		return Tally{}
	}

	areas := make([]float64, len(contours))
	for i, c := range contours {
		areas[i] = c.Area
	}

	t := Tally{
		Stats: AreaStats{
			Median: medianOf(areas),
			Mean:   stat.Mean(areas, nil),
		},
	}
	// Sample standard deviation is undefined for a single contour; keep
	// the field zero there so results stay JSON-encodable.
	if len(areas) > 1 {
		t.Stats.StdDev = stat.StdDev(areas, nil)
	}

	for i := range contours {
		a := contours[i].Area
		switch {
		case a < artifactFraction*t.Stats.Median:
			contours[i].Class = ClassArtifact
			t.Artifacts++
		case a < partialFraction*t.Stats.Median:
			contours[i].Class = ClassPartial
			t.Partial++
		case a > t.Stats.Median:
			contours[i].Class = ClassOverlapped
			t.Overlapped++
			t.OverlappedContours = append(t.OverlappedContours, contours[i])
		}
	}

	return t
}

// medianOf sorts a copy of the values and returns the middle one, or the
// mean of the two middle ones for an even count. stat.Quantile picks a
// single order statistic and would not average the pair, so the median is
// computed directly.
func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
