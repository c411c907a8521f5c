package counting

import (
	"math"
	"testing"
)

func TestSeparate_ShortCircuit(t *testing.T) {
	res := Separate(newBitmap(8, 8), nil, DefaultWatershedWindow, nil)
	if res.Additional != 0 || res.Degraded {
		t.Errorf("no overlapped contours: got %+v, want clean zero", res)
	}
}

func TestSeparate_SingleBlobAddsNothing(t *testing.T) {
	b := newBitmap(64, 64)
	fillDisc(b, 32, 32, 10)

	contours := ExtractContours(b)
	if len(contours) != 1 {
		t.Fatalf("setup: got %d contours", len(contours))
	}

	res := Separate(b, contours, DefaultWatershedWindow, nil)
	if res.Degraded {
		t.Error("single disc degraded")
	}
	// One basin, one original contour: nothing extra.
	if res.Additional != 0 {
		t.Errorf("additional: got %d, want 0", res.Additional)
	}
}

func TestSeparate_TwoMergedDiscs(t *testing.T) {
	b := newBitmap(64, 64)
	fillDisc(b, 24, 32, 8)
	fillDisc(b, 38, 32, 8)

	contours := ExtractContours(b)
	if len(contours) != 1 {
		t.Fatalf("setup: discs did not merge, got %d contours", len(contours))
	}

	res := Separate(b, contours, DefaultWatershedWindow, nil)
	if res.Degraded {
		t.Fatal("merged discs degraded")
	}
	if res.Additional != 1 {
		t.Errorf("additional: got %d, want 1 (two basins minus one contour)", res.Additional)
	}
}

func TestSeparate_Degraded(t *testing.T) {
	b := newBitmap(16, 16)
	fillRect(b, 2, 2, 9, 9)

	tests := []struct {
		name     string
		contours []Contour
	}{
		{"contour without points", []Contour{{Area: 50}}},
		{"point outside image", []Contour{{Points: []Point{{X: 99, Y: 99}}, Area: 50}}},
		{"negative coordinate", []Contour{{Points: []Point{{X: -1, Y: 3}}, Area: 50}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Separate(b, tt.contours, DefaultWatershedWindow, nil)
			if !res.Degraded {
				t.Error("expected degraded result")
			}
			if res.Additional != 0 {
				t.Errorf("additional: got %d, want 0", res.Additional)
			}
		})
	}
}

func TestSeparate_WindowDefaulting(t *testing.T) {
	b := newBitmap(64, 64)
	fillDisc(b, 32, 32, 8)
	contours := ExtractContours(b)

	res := Separate(b, contours, 0, nil)
	if res.Degraded {
		t.Error("zero window should fall back to the default, not degrade")
	}
}

func TestRasterizeContours_FillsInterior(t *testing.T) {
	b := newBitmap(32, 32)
	fillRect(b, 4, 4, 19, 19)

	contours := ExtractContours(b)
	raster, err := rasterizeContours(b, contours)
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}

	// Interior pixels, not just the boundary, must be set.
	for _, p := range []Point{{12, 12}, {5, 5}, {18, 18}} {
		if raster.Pix[p.Y*raster.Width+p.X] == 0 {
			t.Errorf("interior pixel (%d,%d) not filled", p.X, p.Y)
		}
	}
	if raster.Pix[0] != 0 {
		t.Error("background pixel filled")
	}
}

func TestDistanceTransform(t *testing.T) {
	// A 3x3 foreground block centered in 5x5: the center is 2 from the
	// border background, the block corners 1.
	b := newBitmap(5, 5)
	fillRect(b, 1, 1, 3, 3)

	dist := distanceTransform(b)

	check := func(x, y int, want float64) {
		t.Helper()
		got := dist[y*5+x]
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("dist(%d,%d): got %v, want %v", x, y, got, want)
		}
	}

	check(2, 2, 2)
	check(1, 1, 1)
	check(3, 1, 1)
	check(2, 1, 1)
	check(0, 0, 0)
	check(4, 2, 0)
}

func TestFindPeaks_SuppressesNeighbors(t *testing.T) {
	b := newBitmap(64, 64)
	fillDisc(b, 20, 32, 8)
	fillDisc(b, 34, 32, 8)

	dist := distanceTransform(b)
	peaks := findPeaks(dist, b, 5)
	_, count := labelMarkers(peaks, 64, 64)

	if count != 2 {
		t.Errorf("markers: got %d, want 2 (one per disc center)", count)
	}
}

func TestWatershedFlood_DeterministicLabels(t *testing.T) {
	b := newBitmap(64, 64)
	fillDisc(b, 24, 32, 8)
	fillDisc(b, 38, 32, 8)

	dist := distanceTransform(b)
	peaks := findPeaks(dist, b, 5)
	markers, count := labelMarkers(peaks, 64, 64)
	if count != 2 {
		t.Fatalf("setup: got %d markers", count)
	}

	first := watershedFlood(dist, markers, b)
	second := watershedFlood(dist, markers, b)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("labeling not deterministic at pixel %d", i)
		}
	}

	// Every foreground pixel belongs to a basin; background stays zero.
	for i, p := range b.Pix {
		if p != 0 && first[i] == 0 {
			t.Fatalf("foreground pixel %d left unlabeled", i)
		}
		if p == 0 && first[i] != 0 {
			t.Fatalf("background pixel %d labeled", i)
		}
	}

	if countLabels(first) != 2 {
		t.Errorf("distinct labels: got %d, want 2", countLabels(first))
	}
}
