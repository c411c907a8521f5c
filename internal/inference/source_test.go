package inference

import (
	"context"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func TestImageSource_WhiteAndBlack(t *testing.T) {
	src := NewImageSource(16, 16)

	white, err := src.MaskFor(context.Background(), imaging.New(64, 64, color.NRGBA{255, 255, 255, 255}))
	if err != nil {
		t.Fatalf("white: %v", err)
	}
	if white.Width != 16 || white.Height != 16 {
		t.Fatalf("white: got %dx%d grid, want 16x16", white.Width, white.Height)
	}
	if got := white.At(8, 8); got != 1.0 {
		t.Errorf("white probability: got %v, want 1.0", got)
	}

	black, err := src.MaskFor(context.Background(), imaging.New(64, 64, color.NRGBA{0, 0, 0, 255}))
	if err != nil {
		t.Fatalf("black: %v", err)
	}
	if got := black.At(8, 8); got != 0.0 {
		t.Errorf("black probability: got %v, want 0.0", got)
	}
}

func TestImageSource_ResizesInput(t *testing.T) {
	src := NewImageSource(32, 32)

	pm, err := src.MaskFor(context.Background(), imaging.New(100, 40, color.NRGBA{200, 200, 200, 255}))
	if err != nil {
		t.Fatal(err)
	}
	if pm.Width != 32 || pm.Height != 32 || len(pm.Values) != 32*32 {
		t.Errorf("grid: got %dx%d with %d values", pm.Width, pm.Height, len(pm.Values))
	}
}
